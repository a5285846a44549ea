package store

import "time"

// GORM models used for persistence.
type AdminModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Name         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type DonorModel struct {
	ID        string    `gorm:"primaryKey"`
	Seq       int64     `gorm:"autoIncrement;not null"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"not null"`
	Phone     string    `gorm:"not null"`
	BloodType string    `gorm:"not null"`
	Age       int       `gorm:"not null"`
	Address   string    `gorm:"not null"`
	Status    string    `gorm:"not null;index"`
	AppliedAt time.Time `gorm:"not null;index"`
}

type ContactMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	Seq       int64     `gorm:"autoIncrement;not null"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"not null"`
	Subject   string    `gorm:"not null"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (AdminModel) TableName() string { return "admins" }
func (DonorModel) TableName() string { return "donors" }
func (ContactMessageModel) TableName() string { return "contact_messages" }
