package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/pkg/chatclient"
)

const sendAckTimeout = 5 * time.Second

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}

			client := newAPIClient(server)
			result, err := client.Login(cmd.Context(), email, password, role)
			if err != nil {
				return err
			}

			s := &settings{
				Server: server,
				Token:  result.Token,
				UserID: strconv.FormatInt(result.User.ID, 10),
				Role:   string(result.User.Role),
			}
			if err := saveSettings(settingsPathFlag(cmd), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s, id %s)\n", result.User.Name, s.Role, s.UserID)
			return nil
		},
	}
	cmd.Flags().String("server", "http://localhost:8080", "Server base URL")
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password")
	cmd.Flags().String("role", string(models.RoleVolunteer), "Account role: volunteer, organizer or admin")
	return cmd
}

func newConversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List your conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, client, err := session(cmd)
			if err != nil {
				return err
			}
			conversations, err := client.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			printConversations(cmd.OutOrStdout(), conversations, models.Role(s.Role))
			return nil
		},
	}
}

func newMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Print a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := session(cmd)
			if err != nil {
				return err
			}
			messages, err := client.Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMessages(cmd.OutOrStdout(), messages)
			return client.MarkRead(cmd.Context(), args[0])
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <text>",
		Short: "Send a message over the live socket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := session(cmd)
			if err != nil {
				return err
			}
			conn, err := chatclient.Dial(cmd.Context(), s.socketURL(), s.Token, s.UserID, chatclient.Options{Logger: cliLogger(cmd)})
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), sendAckTimeout)
			defer cancel()

			acked := make(chan models.Message, 1)
			failed := make(chan string, 1)
			conn.OnMessage(func(m chatclient.IncomingMessage) {
				if m.ConversationID == args[0] && m.Message.SenderID == s.UserID {
					select {
					case acked <- m.Message:
					default:
					}
				}
			})
			conn.OnError(func(message string) {
				select {
				case failed <- message:
				default:
				}
			})
			go func() { _ = conn.Run(ctx) }()

			if err := conn.SendMessage(args[0], args[1]); err != nil {
				return err
			}
			select {
			case m := <-acked:
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %s at %s\n", m.ID, m.CreatedAt.Local().Format(time.Kitchen))
				return nil
			case message := <-failed:
				return errors.New(message)
			case <-ctx.Done():
				return errors.New("no confirmation from server")
			}
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream incoming messages and typing indicators",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := session(cmd)
			if err != nil {
				return err
			}
			conn, err := chatclient.Dial(cmd.Context(), s.socketURL(), s.Token, s.UserID, chatclient.Options{Logger: cliLogger(cmd)})
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			conn.OnMessage(func(m chatclient.IncomingMessage) {
				fmt.Fprintf(out, "[%s] %s %s: %s\n",
					m.Message.CreatedAt.Local().Format(time.Kitchen), m.ConversationID, m.Message.SenderID, m.Message.Text)
			})
			conn.OnTyping(func(e chatclient.TypingEvent) {
				state := "stopped typing"
				if e.Typing {
					state = "is typing..."
				}
				fmt.Fprintf(out, "%s %s %s\n", e.ConversationID, e.UserID, state)
			})
			conn.OnError(func(message string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "server: %s\n", message)
			})

			fmt.Fprintln(out, "Watching, press Ctrl-C to stop.")
			if err := conn.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func printConversations(out io.Writer, conversations []models.Conversation, role models.Role) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWITH\tEVENT\tUNREAD\tLAST MESSAGE")
	for _, c := range conversations {
		with := c.OrganizerName
		if role == models.RoleOrganizer {
			with = c.VolunteerName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.ID, with, c.EventName, c.Unread.For(role), c.LastMessage)
	}
	_ = w.Flush()
}

func printMessages(out io.Writer, messages []models.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return
	}
	for _, m := range messages {
		fmt.Fprintf(out, "[%s] %s (%s): %s\n",
			m.CreatedAt.Local().Format("Jan 2 15:04"), m.SenderID, m.SenderRole, m.Text)
	}
}
