package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/models"
)

type pendingUserStore interface {
	ListPending(ctx context.Context) ([]models.User, error)
	Approve(ctx context.Context, id int64, role models.Role) (*models.User, error)
	DeletePending(ctx context.Context, id int64, role models.Role) (bool, error)
}

// userCache holds copies of user rows that go stale once moderation
// changes or removes the account.
type userCache interface {
	ForgetUser(id int64)
}

type ModerationService struct {
	users    pendingUserStore
	notifier Notifier
	cache    userCache
	log      zerolog.Logger
}

func NewModerationService(users pendingUserStore, notifier Notifier, log zerolog.Logger) *ModerationService {
	return &ModerationService{
		users:    users,
		notifier: notifier,
		log:      log.With().Str("component", "moderation-service").Logger(),
	}
}

// WithUserCache evicts moderated users from cache after every approval or
// rejection.
func (s *ModerationService) WithUserCache(cache userCache) *ModerationService {
	s.cache = cache
	return s
}

func (s *ModerationService) forget(id int64) {
	if s.cache != nil {
		s.cache.ForgetUser(id)
	}
}

func (s *ModerationService) ListPending(ctx context.Context, actorRole models.Role) ([]models.User, error) {
	if actorRole != models.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.users.ListPending(ctx)
}

func (s *ModerationService) Approve(ctx context.Context, actorRole models.Role, role models.Role, userID int64) (*models.User, error) {
	if actorRole != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if !role.IsChatParticipant() || userID <= 0 {
		return nil, ErrInvalidInput
	}

	user, err := s.users.Approve(ctx, userID, role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.forget(user.ID)
	notifyQuietly(ctx, s.notifier, s.log, user.ID, "Your account has been approved. You can now log in.")
	s.log.Info().Int64("user_id", user.ID).Str("role", string(role)).Msg("account approved")
	return user, nil
}

func (s *ModerationService) Reject(ctx context.Context, actorRole models.Role, role models.Role, userID int64) error {
	if actorRole != models.RoleAdmin {
		return ErrForbidden
	}
	if !role.IsChatParticipant() || userID <= 0 {
		return ErrInvalidInput
	}

	deleted, err := s.users.DeletePending(ctx, userID, role)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.forget(userID)
	s.log.Info().Int64("user_id", userID).Str("role", string(role)).Msg("account rejected")
	return nil
}
