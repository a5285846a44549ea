package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bloodlink/internal/util"
	"bloodlink/pkg/auth"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/store"
)

// Register creates an admin. Usernames are unique case-sensitively, so
// "Alice" and "alice" may both exist.
func (a *App) Register(ctx context.Context, username, password, name string) (domain.Admin, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	if anyEmpty(username, password, name) {
		return domain.Admin{}, ErrFieldsRequired
	}
	if len(password) > auth.MaxPasswordBytes {
		return domain.Admin{}, ErrPasswordTooLong
	}
	_, exists, err := a.store.GetAdminByUsername(ctx, username)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return domain.Admin{}, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("hash password: %w", err)
	}
	admin, err := a.store.CreateAdmin(ctx, domain.Admin{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return domain.Admin{}, ErrUsernameTaken
		}
		return domain.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	return admin, nil
}

// Login verifies credentials and opens a session. Lookup ignores case; when
// several admins fold to the same username each is tried, exact case first.
func (a *App) Login(ctx context.Context, username, password string) (string, domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", domain.Session{}, ErrCredentialsRequired
	}
	candidates, err := a.store.FindAdminsByUsername(ctx, username)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("fetch admin: %w", err)
	}
	if len(candidates) == 0 {
		auth.BurnCompare(password)
		return "", domain.Session{}, ErrInvalidCredentials
	}
	for _, admin := range candidates {
		if !auth.CheckPassword(password, admin.PasswordHash) {
			continue
		}
		sess := domain.SessionFor(admin)
		token, err := a.sessions.NewSession(ctx, sess)
		if err != nil {
			return "", domain.Session{}, fmt.Errorf("create session: %w", err)
		}
		return token, sess, nil
	}
	return "", domain.Session{}, ErrInvalidCredentials
}

// Logout destroys the session. Unknown or empty tokens succeed.
func (a *App) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := a.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentSession resolves token to its admin projection. Store failures are
// logged and treated as no session.
func (a *App) CurrentSession(ctx context.Context, token string) (domain.Session, bool) {
	if token == "" {
		return domain.Session{}, false
	}
	sess, ok, err := a.sessions.GetSession(ctx, token)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("session lookup failed", "err", err)
		return domain.Session{}, false
	}
	return sess, ok
}
