package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/security"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgUserExists         = "User already exists"
)

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) bool
	CheckDummy(plain string)
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  user.Public `json:"user"`
	Token string      `json:"token"`
}

type AccountService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger
	prom   *observability.Prom
}

func NewAccountService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger, prom *observability.Prom) *AccountService {
	if log == nil {
		log = slog.Default()
	}

	return &AccountService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    log,
		prom:   prom,
	}
}

func (s *AccountService) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	if blank(in.Name) || blank(in.Email) || blank(in.Password) {
		s.prom.ObserveAuth("signup", "invalid_input")
		return AuthResult{}, apperr.InvalidInput("Name, email and password are required")
	}

	// friendly early exit; the unique index below is what actually guarantees it
	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		s.prom.ObserveAuth("signup", "conflict")
		return AuthResult{}, apperr.Conflict(msgUserExists, user.ErrEmailAlreadyUsed)
	case !errors.Is(err, user.ErrNotFound):
		return AuthResult{}, s.internal(ctx, "signup", "lookup user", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			s.prom.ObserveAuth("signup", "invalid_input")
			return AuthResult{}, apperr.InvalidInput("Password is too long")
		}
		return AuthResult{}, s.internal(ctx, "signup", "hash password", err)
	}

	u, err := s.users.Create(ctx, in.Name, in.Email, hash)
	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			s.prom.ObserveAuth("signup", "conflict")
			return AuthResult{}, apperr.Conflict(msgUserExists, err)
		}
		return AuthResult{}, s.internal(ctx, "signup", "create user", err)
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return AuthResult{}, s.internal(ctx, "signup", "issue token", err)
	}

	s.prom.ObserveAuth("signup", "ok")
	s.log.InfoContext(ctx, "user signed up", "user_id", u.ID)

	return AuthResult{User: u.Public(), Token: token}, nil
}

// Login answers an unknown email and a wrong password identically.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	if blank(in.Email) || in.Password == "" {
		s.prom.ObserveAuth("login", "invalid_input")
		return AuthResult{}, apperr.InvalidInput("Email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return AuthResult{}, s.internal(ctx, "login", "lookup user", err)
		}

		s.hasher.CheckDummy(in.Password)
		s.prom.ObserveAuth("login", "invalid_credentials")
		return AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	if !s.hasher.Check(u.PasswordHash, in.Password) {
		s.prom.ObserveAuth("login", "invalid_credentials")
		return AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return AuthResult{}, s.internal(ctx, "login", "issue token", err)
	}

	s.prom.ObserveAuth("login", "ok")

	return AuthResult{User: u.Public(), Token: token}, nil
}

func (s *AccountService) internal(ctx context.Context, op, step string, err error) error {
	s.prom.ObserveAuth(op, "error")
	s.log.ErrorContext(ctx, op+" failed", "step", step, "err", err)
	return apperr.Internal(err)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
