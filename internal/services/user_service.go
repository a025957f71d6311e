package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const minPasswordLen = 8

type UserService struct {
	db core.UserStore
}

func NewUserService(db core.UserStore) *UserService {
	return &UserService{db: db}
}

type SignupInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Signup creates a USER-role account. Admins are created by another admin.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleUser)
}

func (s *UserService) create(ctx context.Context, in SignupInput, role models.Role) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	existing, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.db.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users []models.User `json:"users"`
	Total int           `json:"total"`
}

func validRole(r models.Role) bool {
	return r == models.RoleUser || r == models.RoleAdmin
}

// CreateUser provisions an account with any role.
func (s *UserService) CreateUser(ctx context.Context, actor Actor, in SignupInput, role models.Role) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	u, err := s.create(ctx, in, role)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user created", "user_id", u.ID, "role", role, "admin_id", actor.UserID)
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, actor Actor, id string) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	u, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor Actor, f core.UserFilter) (*UserPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if f.Role != "" && !validRole(f.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, f.Role)
	}
	users, total, err := s.db.ListUsers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &UserPage{Users: users, Total: total}, nil
}

// UpdateRole changes another user's role. Admins cannot change their own.
func (s *UserService) UpdateRole(ctx context.Context, actor Actor, id string, role models.Role) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if id == actor.UserID {
		return nil, fmt.Errorf("%w: cannot change your own role", ErrInvalidInput)
	}
	ok, err := s.db.UpdateUserRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	slog.InfoContext(ctx, "user role updated", "user_id", id, "role", role, "admin_id", actor.UserID)
	return s.GetUser(ctx, actor, id)
}

// DeleteUser removes another user. A user who still owns documents cannot be
// deleted until those are gone.
func (s *UserService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	ok, err := s.db.DeleteUser(ctx, id)
	if errors.Is(err, core.ErrReferenced) {
		return fmt.Errorf("%w: user still owns documents", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	slog.InfoContext(ctx, "user deleted", "user_id", id, "admin_id", actor.UserID)
	return nil
}
