package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/internal/repository"
	"github.com/voluntrack/voluntrack/pkg/utils"
)

const minPasswordLength = 8

type accountStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type AuthService struct {
	users     accountStore
	jwtSecret string
	log       zerolog.Logger
}

func NewAuthService(users accountStore, jwtSecret string, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		log:       log.With().Str("component", "auth-service").Logger(),
	}
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Phone    *string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a pending volunteer or organizer account. An administrator
// has to approve it before the user can log in.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	if !input.Role.IsChatParticipant() {
		return nil, ErrInvalidInput
	}
	email := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" || name == "" || len(input.Password) < minPasswordLength {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrConflict
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	var phone *string
	if input.Phone != nil {
		if trimmed := strings.TrimSpace(*input.Phone); trimmed != "" {
			phone = &trimmed
		}
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		Phone:        phone,
		PasswordHash: hashed,
		Role:         input.Role,
		Status:       models.AccountPending,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.log.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("account created, awaiting approval")
	return user, nil
}

// Login checks the credentials against an account of the given role and
// returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string, role models.Role) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !utils.CheckPassword(password, user.PasswordHash) || user.Role != role {
		return nil, "", ErrInvalidCredentials
	}
	if user.Status != models.AccountApproved {
		return nil, "", ErrAccountPending
	}

	token, err := utils.GenerateToken(formatUserID(user.ID), string(user.Role), s.jwtSecret)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// EnsureAdmin creates an approved administrator unless an account with the
// email already exists. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < minPasswordLength {
		return false, ErrInvalidInput
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	admin := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
		Status:       models.AccountApproved,
	}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		if repository.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}

	s.log.Info().Str("email", email).Msg("bootstrap administrator created")
	return true, nil
}
