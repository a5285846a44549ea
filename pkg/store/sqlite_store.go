package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/store/migrations"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store on a single SQLite file.
// Timestamps are stored as unix nanoseconds so ordering is exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and applies pending migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if err := runSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func runSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateAdmin stores a new admin.
func (s *SQLiteStore) CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error) {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (id, username, password_hash, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.PasswordHash, a.Name, a.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Admin{}, ErrDuplicateUsername
		}
		return domain.Admin{}, err
	}
	return a, nil
}

// GetAdminByID returns an admin by ID.
func (s *SQLiteStore) GetAdminByID(ctx context.Context, id string) (domain.Admin, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, name, created_at FROM admins WHERE id = ?`, id)
	return scanAdminRow(row)
}

// GetAdminByUsername looks up an admin by exact username.
func (s *SQLiteStore) GetAdminByUsername(ctx context.Context, username string) (domain.Admin, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, name, created_at FROM admins WHERE username = ?`, username)
	return scanAdminRow(row)
}

// FindAdminsByUsername returns admins whose username matches ignoring case.
// SQLite's LOWER only folds ASCII, so the fold comparison happens in Go.
func (s *SQLiteStore) FindAdminsByUsername(ctx context.Context, username string) ([]domain.Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, name, created_at FROM admins ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]domain.Admin, 0, 1)
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		if foldEqual(a.Username, username) {
			res = append(res, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortAdminMatches(username, res)
	return res, nil
}

// CreateDonor stores a donor application.
func (s *SQLiteStore) CreateDonor(ctx context.Context, d domain.Donor) (domain.Donor, error) {
	if d.ID == "" {
		d.ID = NewID()
	}
	if d.AppliedAt.IsZero() {
		d.AppliedAt = now()
	}
	if d.Status == "" {
		d.Status = domain.DonorPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO donors (id, name, email, phone, blood_type, age, address, status, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Email, d.Phone, d.BloodType, d.Age, d.Address, string(d.Status), d.AppliedAt.UnixNano())
	if err != nil {
		return domain.Donor{}, err
	}
	return d, nil
}

const donorColumns = `id, name, email, phone, blood_type, age, address, status, applied_at`

// ListDonors returns donors newest first.
func (s *SQLiteStore) ListDonors(ctx context.Context) ([]domain.Donor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+donorColumns+` FROM donors ORDER BY applied_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]domain.Donor, 0)
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// GetDonor retrieves a donor by ID.
func (s *SQLiteStore) GetDonor(ctx context.Context, id string) (domain.Donor, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donorColumns+` FROM donors WHERE id = ?`, id)
	d, err := scanDonor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Donor{}, false, nil
		}
		return domain.Donor{}, false, err
	}
	return d, true, nil
}

// SetDonorStatus updates the status of a donor and returns the updated record.
func (s *SQLiteStore) SetDonorStatus(ctx context.Context, id string, status domain.DonorStatus) (domain.Donor, bool, error) {
	if !status.Valid() {
		return domain.Donor{}, false, ErrInvalidStatus
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE donors SET status = ? WHERE id = ? RETURNING `+donorColumns, string(status), id)
	d, err := scanDonor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Donor{}, false, nil
		}
		return domain.Donor{}, false, err
	}
	return d, true, nil
}

// DeleteDonor removes a donor and reports whether it existed.
func (s *SQLiteStore) DeleteDonor(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM donors WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountDonorsByStatus tallies donors per status.
func (s *SQLiteStore) CountDonorsByStatus(ctx context.Context) (map[domain.DonorStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM donors GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.DonorStatus]int, 3)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.DonorStatus(status)] = n
	}
	return counts, rows.Err()
}

// CreateContactMessage stores a contact form submission.
func (s *SQLiteStore) CreateContactMessage(ctx context.Context, msg domain.ContactMessage) (domain.ContactMessage, error) {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, name, email, subject, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Name, msg.Email, msg.Subject, msg.Message, msg.CreatedAt.UnixNano())
	if err != nil {
		return domain.ContactMessage{}, err
	}
	return msg, nil
}

// ListContactMessages returns contact messages newest first.
func (s *SQLiteStore) ListContactMessages(ctx context.Context) ([]domain.ContactMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, subject, message, created_at FROM contact_messages ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make([]domain.ContactMessage, 0)
	for rows.Next() {
		var (
			m  domain.ContactMessage
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &ts); err != nil {
			return nil, err
		}
		m.CreatedAt = fromUnixNano(ts)
		res = append(res, m)
	}
	return res, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanAdminRow(row *sql.Row) (domain.Admin, bool, error) {
	a, err := scanAdmin(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Admin{}, false, nil
		}
		return domain.Admin{}, false, err
	}
	return a, true, nil
}

func scanAdmin(r rowScanner) (domain.Admin, error) {
	var (
		a  domain.Admin
		ts int64
	)
	if err := r.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Name, &ts); err != nil {
		return domain.Admin{}, err
	}
	a.CreatedAt = fromUnixNano(ts)
	return a, nil
}

func scanDonor(r rowScanner) (domain.Donor, error) {
	var (
		d      domain.Donor
		status string
		ts     int64
	)
	if err := r.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.BloodType, &d.Age, &d.Address, &status, &ts); err != nil {
		return domain.Donor{}, err
	}
	d.Status = domain.DonorStatus(status)
	d.AppliedAt = fromUnixNano(ts)
	return d, nil
}

func fromUnixNano(ts int64) time.Time {
	return time.Unix(0, ts).UTC()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
