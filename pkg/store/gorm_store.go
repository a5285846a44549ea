package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"bloodlink/pkg/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 51723011

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&AdminModel{}, &DonorModel{}, &ContactMessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateAdmin stores a new admin.
func (s *GormStore) CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error) {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	model := adminToModel(a)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Admin{}, ErrDuplicateUsername
		}
		return domain.Admin{}, err
	}
	return adminFromModel(model), nil
}

// GetAdminByID returns an admin by ID.
func (s *GormStore) GetAdminByID(ctx context.Context, id string) (domain.Admin, bool, error) {
	var model AdminModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Admin{}, false, nil
		}
		return domain.Admin{}, false, err
	}
	return adminFromModel(model), true, nil
}

// GetAdminByUsername looks up an admin by exact username.
func (s *GormStore) GetAdminByUsername(ctx context.Context, username string) (domain.Admin, bool, error) {
	var model AdminModel
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Admin{}, false, nil
		}
		return domain.Admin{}, false, err
	}
	return adminFromModel(model), true, nil
}

// FindAdminsByUsername returns admins whose username matches ignoring case.
func (s *GormStore) FindAdminsByUsername(ctx context.Context, username string) ([]domain.Admin, error) {
	var models []AdminModel
	if err := s.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", username).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Admin, 0, len(models))
	for _, m := range models {
		res = append(res, adminFromModel(m))
	}
	sortAdminMatches(username, res)
	return res, nil
}

// CreateDonor stores a donor application.
func (s *GormStore) CreateDonor(ctx context.Context, d domain.Donor) (domain.Donor, error) {
	if d.ID == "" {
		d.ID = NewID()
	}
	if d.AppliedAt.IsZero() {
		d.AppliedAt = now()
	}
	if d.Status == "" {
		d.Status = domain.DonorPending
	}
	model := donorToModel(d)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Donor{}, err
	}
	return donorFromModel(model), nil
}

// ListDonors returns donors newest first.
func (s *GormStore) ListDonors(ctx context.Context) ([]domain.Donor, error) {
	var models []DonorModel
	if err := s.db.WithContext(ctx).Order("applied_at DESC, seq DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Donor, 0, len(models))
	for _, m := range models {
		res = append(res, donorFromModel(m))
	}
	return res, nil
}

// GetDonor retrieves a donor.
func (s *GormStore) GetDonor(ctx context.Context, id string) (domain.Donor, bool, error) {
	var model DonorModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Donor{}, false, nil
		}
		return domain.Donor{}, false, err
	}
	return donorFromModel(model), true, nil
}

// SetDonorStatus updates donor status and returns the stored record.
func (s *GormStore) SetDonorStatus(ctx context.Context, id string, status domain.DonorStatus) (domain.Donor, bool, error) {
	if !status.Valid() {
		return domain.Donor{}, false, ErrInvalidStatus
	}
	var model DonorModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DonorModel{}).Where("id = ?", id).Update("status", string(status))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Donor{}, false, nil
		}
		return domain.Donor{}, false, err
	}
	return donorFromModel(model), true, nil
}

// DeleteDonor removes a donor and reports whether it existed.
func (s *GormStore) DeleteDonor(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&DonorModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountDonorsByStatus tallies donors per status.
func (s *GormStore) CountDonorsByStatus(ctx context.Context) (map[domain.DonorStatus]int, error) {
	var rows []struct {
		Status string
		Count  int
	}
	if err := s.db.WithContext(ctx).
		Model(&DonorModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.DonorStatus]int, len(rows))
	for _, r := range rows {
		counts[domain.DonorStatus(r.Status)] = r.Count
	}
	return counts, nil
}

// CreateContactMessage stores a contact form submission.
func (s *GormStore) CreateContactMessage(ctx context.Context, msg domain.ContactMessage) (domain.ContactMessage, error) {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	model := contactToModel(msg)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.ContactMessage{}, err
	}
	return contactFromModel(model), nil
}

// ListContactMessages returns contact messages newest first.
func (s *GormStore) ListContactMessages(ctx context.Context) ([]domain.ContactMessage, error) {
	var models []ContactMessageModel
	if err := s.db.WithContext(ctx).Order("created_at DESC, seq DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ContactMessage, 0, len(models))
	for _, m := range models {
		res = append(res, contactFromModel(m))
	}
	return res, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// pgTime drops what timestamptz cannot hold so the value handed back from a
// create equals the one a later read returns.
func pgTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func adminToModel(a domain.Admin) AdminModel {
	return AdminModel{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		Name:         a.Name,
		CreatedAt:    pgTime(a.CreatedAt),
	}
}

func adminFromModel(m AdminModel) domain.Admin {
	return domain.Admin{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func donorToModel(d domain.Donor) DonorModel {
	return DonorModel{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		BloodType: d.BloodType,
		Age:       d.Age,
		Address:   d.Address,
		Status:    string(d.Status),
		AppliedAt: pgTime(d.AppliedAt),
	}
}

func donorFromModel(m DonorModel) domain.Donor {
	return domain.Donor{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		BloodType: m.BloodType,
		Age:       m.Age,
		Address:   m.Address,
		Status:    domain.DonorStatus(m.Status),
		AppliedAt: m.AppliedAt.UTC(),
	}
}

func contactToModel(c domain.ContactMessage) ContactMessageModel {
	return ContactMessageModel{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Subject:   c.Subject,
		Message:   c.Message,
		CreatedAt: pgTime(c.CreatedAt),
	}
}

func contactFromModel(m ContactMessageModel) domain.ContactMessage {
	return domain.ContactMessage{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Message:   m.Message,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
