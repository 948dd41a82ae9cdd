package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/rituo/pkg/types"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the body of PUT /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// Session is a user together with a freshly issued access token.
type Session struct {
	User        *types.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Service implements account registration, login and maintenance over
// the ledger's user table.
type Service struct {
	ledger   types.Ledger
	tokens   *Tokens
	validate *validator.Validate
	cost     int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService returns a Service issuing tokens with tokens.
func NewService(ledger types.Ledger, tokens *Tokens, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	s := &Service{
		ledger:   ledger,
		tokens:   tokens,
		validate: v,
		cost:     bcrypt.DefaultCost,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns the token issuer, for the authentication middleware.
func (s *Service) Tokens() *Tokens { return s.tokens }

// HashPassword hashes a plaintext password with the service's bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.check("register", req); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &types.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := s.ledger.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.UserID, "username", u.Username)
	return s.session(u)
}

// Login checks credentials and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := s.check("login", req); err != nil {
		return nil, err
	}
	u, err := s.ledger.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.Errorf(types.ErrUnauthorized, "login", "invalid username or password")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, types.Errorf(types.ErrUnauthorized, "login", "invalid username or password")
	}
	return s.session(u)
}

// User returns the account behind userID.
func (s *Service) User(ctx context.Context, userID string) (*types.User, error) {
	return s.ledger.GetUser(ctx, userID)
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := s.check("change password", req); err != nil {
		return err
	}
	u, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return types.Errorf(types.ErrUnauthorized, "change password", "current password is incorrect")
	}
	hash, err := s.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.ledger.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// DeleteAccount removes the user and everything the user owns.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.ledger.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

func (s *Service) session(u *types.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: token, ExpiresAt: expires}, nil
}

// check runs struct validation and reports the first failing field.
func (s *Service) check(op string, req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return types.Errorf(types.ErrValidation, op, "%s", describe(fe))
	}
	return types.Errorf(types.ErrValidation, op, "%v", err)
}

// describe renders a field error as a short user-facing message.
func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
