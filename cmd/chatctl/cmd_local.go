package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/chatsync"
	"github.com/voluntrack/voluntrack/internal/models"
)

var timeNow = time.Now

// localStore is the store behind the local commands plus a release func.
type localStore struct {
	store chatstore.Store
	close func()
}

func openLocalStore(cmd *cobra.Command) (*localStore, error) {
	redisURL, _ := cmd.Flags().GetString("redis")
	prefix, _ := cmd.Flags().GetString("prefix")
	log := cliLogger(cmd)

	if redisURL == "" {
		store := chatstore.NewKVStore(chatstore.NewMemoryKV(), prefix, chatstore.WithLogger(log))
		return &localStore{store: store, close: func() {}}, nil
	}

	client, err := chatstore.NewRedisClient(cmd.Context(), redisURL)
	if err != nil {
		return nil, err
	}
	kv := chatstore.NewRedisKV(client, prefix, log)
	return &localStore{
		store: chatstore.NewKVStore(kv, prefix, chatstore.WithLogger(log)),
		close: func() { _ = client.Close() },
	}, nil
}

// withSession runs fn against a started sync session for the flag-selected
// user. The demo data is written first when the store is empty.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *chatsync.Session) error) error {
	userID, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")

	local, err := openLocalStore(cmd)
	if err != nil {
		return err
	}
	defer local.close()

	seed := chatstore.DefaultSeed(timeNow())
	session, err := chatsync.NewSession(local.store, userID, models.Role(role), chatsync.Options{
		Seed:   &seed,
		Logger: cliLogger(cmd),
	})
	if err != nil {
		return err
	}
	if err := session.Start(cmd.Context()); err != nil {
		return err
	}
	defer session.Stop()

	return fn(cmd.Context(), session)
}

func newLocalCmd() *cobra.Command {
	local := &cobra.Command{
		Use:   "local",
		Short: "Drive a chat session against a local key-value store",
		Long: `Local commands run the chat sync session directly on the key-value
store. Without --redis the store lives in memory for the duration of the
command and starts with the demo conversations.`,
	}
	local.PersistentFlags().String("redis", "", "Redis URL; memory is used when empty")
	local.PersistentFlags().String("prefix", chatstore.DefaultKeyPrefix, "Key prefix of the chat blobs")
	local.PersistentFlags().String("user", "v1", "User id to act as")
	local.PersistentFlags().String("role", string(models.RoleVolunteer), "Role to act as: volunteer or organizer")

	local.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Write the demo conversations when the store is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLocalStore(cmd)
			if err != nil {
				return err
			}
			defer store.close()

			seeder, ok := chatstore.Capability[chatstore.Seeder](store.store)
			if !ok {
				return fmt.Errorf("store cannot be seeded")
			}
			seeded, err := seeder.SeedIfEmpty(cmd.Context(), chatstore.DefaultSeed(timeNow()))
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "Seeded demo conversations.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Store already has data, nothing written.")
			}
			return nil
		},
	})

	local.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the user's conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(_ context.Context, s *chatsync.Session) error {
				role, _ := cmd.Flags().GetString("role")
				printConversations(cmd.OutOrStdout(), s.Conversations(), models.Role(role))
				return nil
			})
		},
	})

	local.AddCommand(&cobra.Command{
		Use:   "open <conversation-id>",
		Short: "Open a conversation, print it and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *chatsync.Session) error {
				if err := s.OpenConversation(ctx, args[0]); err != nil {
					return err
				}
				printMessages(cmd.OutOrStdout(), s.Messages(args[0]))
				return nil
			})
		},
	})

	local.AddCommand(&cobra.Command{
		Use:   "send <conversation-id> <text>",
		Short: "Send a message as the user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *chatsync.Session) error {
				message, err := s.SendMessage(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %s\n", message.ID)
				return nil
			})
		},
	})

	return local
}
