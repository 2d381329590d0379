package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"geekshub-backend-go/internal/models"
	"geekshub-backend-go/internal/store"
)

type RegisterInput struct {
	Email       string  `json:"email" validate:"required,email,max=255"`
	Password    string  `json:"password" validate:"required,min=8,max=128"`
	DisplayName string  `json:"displayName" validate:"notblank,max=120"`
	Major       *string `json:"major" validate:"omitempty,max=64"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SetRoleInput struct {
	Role string `json:"role" validate:"role"`
}

// Principal is an authenticated caller as seen by handlers.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

func (p Principal) Actor() Actor {
	return Actor{ID: p.UserID, Name: p.Name}
}

func (p Principal) HasAnyRole(roles ...string) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type Accounts struct {
	store  store.Store
	tokens TokenService
	now    func() time.Time
}

func NewAccounts(st store.Store, tokens TokenService) *Accounts {
	return &Accounts{store: st, tokens: tokens, now: func() time.Time { return time.Now().UTC() }}
}

func (a *Accounts) Tokens() TokenService {
	return a.tokens
}

func (a *Accounts) issue(user *models.User) (TokenPair, error) {
	return a.tokens.IssuePair(user.ID, user.Email, user.DisplayName, []string{user.Role})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Accounts) Register(ctx context.Context, input RegisterInput) (*models.User, TokenPair, error) {
	input.Email = normalizeEmail(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if err := Validate(input); err != nil {
		return nil, TokenPair{}, err
	}
	email := input.Email
	if _, err := a.store.GetUserByEmail(ctx, email); err == nil {
		return nil, TokenPair{}, ErrConflict("Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, TokenPair{}, WrapError(err, "lookup user")
	}
	hash, err := a.tokens.HashPassword(input.Password)
	if err != nil {
		return nil, TokenPair{}, WrapError(err, "hash password")
	}
	now := a.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  input.DisplayName,
		PasswordHash: &hash,
		Role:         models.RoleStudent,
		Major:        input.Major,
		CreatedAt:    now,
		LastLoginAt:  &now,
	}
	if err := a.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, TokenPair{}, ErrConflict("Email already registered")
		}
		return nil, TokenPair{}, WrapError(err, "insert user")
	}
	pair, err := a.issue(user)
	return user, pair, err
}

func (a *Accounts) Login(ctx context.Context, input LoginInput) (*models.User, TokenPair, error) {
	input.Email = normalizeEmail(input.Email)
	if err := Validate(input); err != nil {
		return nil, TokenPair{}, err
	}
	user, err := a.store.GetUserByEmail(ctx, input.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, TokenPair{}, ErrUnauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, TokenPair{}, WrapError(err, "lookup user")
	}
	if user.PasswordHash == nil || !a.tokens.VerifyPassword(input.Password, *user.PasswordHash) {
		return nil, TokenPair{}, ErrUnauthorized("Invalid email or password")
	}
	if err := a.store.SetLastLogin(ctx, user.ID, a.now()); err != nil {
		return nil, TokenPair{}, WrapError(err, "set last login")
	}
	pair, err := a.issue(user)
	return user, pair, err
}

func (a *Accounts) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := a.tokens.ParseToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, ErrUnauthorized("Invalid refresh token")
	}
	user, err := a.store.GetUser(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, ErrUnauthorized("Invalid refresh token")
	}
	if err != nil {
		return TokenPair{}, WrapError(err, "load user")
	}
	return a.issue(user)
}

// ResolveExternal maps an identity provider subject to a local user,
// creating a STUDENT on first sight. Known roles carried by the token are
// added to the stored role.
func (a *Accounts) ResolveExternal(ctx context.Context, identity ExternalIdentity) (Principal, error) {
	user, err := a.store.GetUserByExternalID(ctx, identity.Subject)
	if errors.Is(err, store.ErrNotFound) {
		user, err = a.provision(ctx, identity)
	}
	if err != nil {
		return Principal{}, err
	}
	roles := []string{user.Role}
	for _, role := range identity.Roles {
		if role != user.Role && isKnownRole(role) {
			roles = append(roles, role)
		}
	}
	return Principal{UserID: user.ID, Email: user.Email, Name: user.DisplayName, Roles: roles}, nil
}

func (a *Accounts) provision(ctx context.Context, identity ExternalIdentity) (*models.User, error) {
	subject := identity.Subject
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(identity.Email, "@", 2)[0]
	}
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		email = subject + "@external.invalid"
	}
	now := a.now()
	user := &models.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: name,
		Role:        models.RoleStudent,
		ExternalID:  &subject,
		CreatedAt:   now,
		LastLoginAt: &now,
	}
	if err := a.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return a.store.GetUserByExternalID(ctx, subject)
		}
		return nil, WrapError(err, "provision external user")
	}
	return user, nil
}

func isKnownRole(role string) bool {
	for _, known := range models.Roles {
		if known == role {
			return true
		}
	}
	return false
}

func (a *Accounts) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := a.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound("User not found")
	}
	return user, WrapError(err, "load user")
}

func (a *Accounts) List(ctx context.Context, filter store.UserFilter) ([]models.User, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	items, total, err := a.store.ListUsers(ctx, filter)
	return items, total, WrapError(err, "list users")
}

// SetRole changes a user's role. Admins cannot change their own role.
func (a *Accounts) SetRole(ctx context.Context, actor Actor, userID string, input SetRoleInput) (*models.User, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return nil, ErrBadRequest("You cannot change your own role")
	}
	if err := a.store.SetUserRole(ctx, userID, input.Role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound("User not found")
		}
		return nil, WrapError(err, "set user role")
	}
	return a.Get(ctx, userID)
}
