package store

import (
	"context"
	"errors"

	"bloodlink/pkg/domain"
)

var (
	// ErrInvalidStatus is returned when a donor status outside the known set is written.
	ErrInvalidStatus = errors.New("invalid donor status")
	// ErrDuplicateUsername is returned when an admin with the exact same username exists.
	ErrDuplicateUsername = errors.New("duplicate admin username")
)

// Store defines persistence operations for admins, donors, and contact messages.
// Create* methods assign an ID and creation timestamp when they are unset.
// List* methods return snapshots ordered newest first.
type Store interface {
	// admins
	CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error)
	GetAdminByID(ctx context.Context, id string) (domain.Admin, bool, error)
	GetAdminByUsername(ctx context.Context, username string) (domain.Admin, bool, error)
	FindAdminsByUsername(ctx context.Context, username string) ([]domain.Admin, error)

	// donors
	CreateDonor(ctx context.Context, d domain.Donor) (domain.Donor, error)
	ListDonors(ctx context.Context) ([]domain.Donor, error)
	GetDonor(ctx context.Context, id string) (domain.Donor, bool, error)
	SetDonorStatus(ctx context.Context, id string, status domain.DonorStatus) (domain.Donor, bool, error)
	DeleteDonor(ctx context.Context, id string) (bool, error)
	CountDonorsByStatus(ctx context.Context) (map[domain.DonorStatus]int, error)

	// contact messages
	CreateContactMessage(ctx context.Context, m domain.ContactMessage) (domain.ContactMessage, error)
	ListContactMessages(ctx context.Context) ([]domain.ContactMessage, error)

	Close() error
}

// SessionStore binds opaque tokens to admin sessions.
// GetSession reports false for unknown, expired, or revoked tokens.
type SessionStore interface {
	NewSession(ctx context.Context, s domain.Session) (string, error)
	GetSession(ctx context.Context, token string) (domain.Session, bool, error)
	DeleteSession(ctx context.Context, token string) error
}
