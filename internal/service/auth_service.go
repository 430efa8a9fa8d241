package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
)

const minPasswordLength = 8

// TokenIssuer signs access tokens for authenticated users
type TokenIssuer interface {
	GenerateToken(userID string, role domain.Role) (string, time.Time, error)
}

// AuthService handles authentication operations
type AuthService struct {
	base
	tokens TokenIssuer
	cost   int
}

// NewAuthService creates a new authentication service
func NewAuthService(d Deps, tokens TokenIssuer) *AuthService {
	return &AuthService{
		base:   newBase(d, "auth_service"),
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// RegisterInput is a self-service signup
type RegisterInput struct {
	Email    string
	Password string
	Role     domain.Role
	FullName string
	Phone    string
}

// AuthResult represents a login or registration response
type AuthResult struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	TokenType string    `json:"tokenType"`
}

// Register creates a new owner or tenant account. Tenants get their profile
// in the same transaction, keyed by the user id.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrValidation)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	switch in.Role {
	case domain.RoleOwner:
	case domain.RoleTenant:
		if strings.TrimSpace(in.FullName) == "" {
			return nil, fmt.Errorf("%w: full name is required for tenants", domain.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: role must be owner or tenant", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsActive:     true,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if err := tx.Users.Create(ctx, user); err != nil {
			return err
		}
		if in.Role != domain.RoleTenant {
			return nil
		}
		return tx.Tenants.Create(ctx, &domain.TenantProfile{
			ID:        user.ID,
			FullName:  strings.TrimSpace(in.FullName),
			Email:     email,
			Phone:     in.Phone,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	p, _ := domain.NewPrincipal(user.ID, user.Role)
	s.record(ctx, p, audit.ActionUserRegister, "account registered", map[string]string{"user_id": user.ID})

	return s.issue(user)
}

// Login authenticates a user and returns a signed token. Unknown emails,
// inactive accounts and wrong passwords all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	user, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("login attempt with unknown email")
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed with wrong password", slog.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// ChangePassword replaces the caller's password after verifying the old one
func (s *AuthService) ChangePassword(ctx context.Context, p domain.Principal, oldPassword, newPassword string) error {
	if p == nil {
		return domain.ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	repos := s.store.Repos()
	user, err := repos.Users.GetByID(ctx, p.ID())
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	if err := repos.Users.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Info("user changed password", slog.String("user_id", user.ID))
	s.record(ctx, p, audit.ActionUserPassword, "password changed", map[string]string{"user_id": user.ID})
	return nil
}

// CreateSuperAdmin provisions a platform administrator. It is only reachable
// from the operator CLI, never over HTTP.
func (s *AuthService) CreateSuperAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: email and a password of at least %d characters are required", domain.ErrValidation, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &domain.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsActive:     true,
	}
	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.record(ctx, nil, audit.ActionUserRegister, "superadmin provisioned", map[string]string{"user_id": user.ID})
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		Token:     token,
		ExpiresAt: expiresAt,
		TokenType: "Bearer",
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
