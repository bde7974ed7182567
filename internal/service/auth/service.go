package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"channah-support-chat/internal/database"
	internaljwt "channah-support-chat/internal/jwt"
	"channah-support-chat/internal/model"

	"github.com/google/uuid"
)

const (
	userStatusActive  = "active"
	minPasswordLength = 8
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo: repo,
		now:  now,
	}
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)
	name := strings.TrimSpace(params.Name)

	if email == "" || password == "" || name == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}
	if !strings.Contains(email, "@") {
		return AuthResult{}, newError(ErrorCodeValidation, "a valid email is required", nil)
	}
	if len(password) < minPasswordLength {
		return AuthResult{}, newError(ErrorCodeValidation, "password must be at least 8 characters", nil)
	}

	role := model.SenderRole(strings.ToLower(strings.TrimSpace(params.Role)))
	if role == "" {
		role = model.RoleCustomer
	}
	if !role.Valid() {
		return AuthResult{}, newError(ErrorCodeValidation, "role must be customer or agent", nil)
	}

	if _, err := s.repo.FindUserByEmail(ctx, email); err == nil {
		return AuthResult{}, newError(ErrorCodeConflict, "email already registered", nil)
	} else if !errors.Is(err, ErrNotFound) {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to fetch user", err)
	}

	hash, err := internaljwt.HashPassword(password)
	if errors.Is(err, internaljwt.ErrPasswordTooLong) {
		return AuthResult{}, newError(ErrorCodeValidation, "password must be at most 72 bytes", err)
	}
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to prepare user", err)
	}

	user := model.UserItem{
		UserID:       uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         role,
		Status:       userStatusActive,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return AuthResult{}, newError(ErrorCodeConflict, "email already registered", err)
		}
		return AuthResult{}, newError(ErrorCodeInternal, "failed to save user", err)
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, params LoginParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)

	if email == "" || password == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, newError(ErrorCodeUnauthorized, "invalid credentials", nil)
		}
		return AuthResult{}, newError(ErrorCodeInternal, "failed to fetch user", err)
	}
	if user.Status != userStatusActive || !internaljwt.CheckPassword(user.PasswordHash, password) {
		return AuthResult{}, newError(ErrorCodeUnauthorized, "invalid credentials", nil)
	}

	return s.issue(user)
}

func (s *Service) Me(ctx context.Context, identity Identity) (model.UserItem, error) {
	userID := strings.TrimSpace(identity.UserID)
	if userID == "" {
		return model.UserItem{}, newError(ErrorCodeUnauthorized, "invalid user identity", nil)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.UserItem{}, newError(ErrorCodeNotFound, "user not found", err)
		}
		return model.UserItem{}, newError(ErrorCodeInternal, "failed to fetch user", err)
	}
	return user, nil
}

func (s *Service) IdentityFromAuthorizationHeader(header string) (Identity, error) {
	authHeader := strings.TrimSpace(header)
	if authHeader == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "missing authorization header", nil)
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return Identity{}, newError(ErrorCodeUnauthorized, "invalid authorization header format", nil)
	}

	return s.IdentityFromToken(strings.TrimPrefix(authHeader, "Bearer "))
}

func (s *Service) IdentityFromToken(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "empty token", nil)
	}

	claims, err := internaljwt.ParseToken(token)
	if err != nil {
		return Identity{}, newError(ErrorCodeUnauthorized, "invalid token", err)
	}

	return Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

func (s *Service) issue(user model.UserItem) (AuthResult, error) {
	expiresAt := s.now().Add(internaljwt.TokenTTL()).Unix()
	token, err := internaljwt.CreateToken(internaljwt.Subject{
		UserID: user.UserID,
		Email:  user.Email,
		Role:   user.Role,
	}, expiresAt)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue token", err)
	}

	return AuthResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
