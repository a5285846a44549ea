package domain

import "time"

type DonorStatus string

const (
	DonorPending  DonorStatus = "pending"
	DonorApproved DonorStatus = "approved"
	DonorRejected DonorStatus = "rejected"
)

// Valid reports whether s is one of the known donor statuses.
func (s DonorStatus) Valid() bool {
	switch s {
	case DonorPending, DonorApproved, DonorRejected:
		return true
	default:
		return false
	}
}

// Admin is a dashboard operator. PasswordHash never leaves the process.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the admin projection bound to a session token.
type Session struct {
	AdminID  string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// SessionFor projects an admin into its session form.
func SessionFor(a Admin) Session {
	return Session{AdminID: a.ID, Username: a.Username, Name: a.Name}
}

type Donor struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	BloodType string      `json:"bloodType"`
	Age       int         `json:"age"`
	Address   string      `json:"address"`
	Status    DonorStatus `json:"status"`
	AppliedAt time.Time   `json:"appliedAt"`
}

// DonorInput carries the publicly submitted donor application fields.
type DonorInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BloodType string `json:"bloodType"`
	Age       int    `json:"age"`
	Address   string `json:"address"`
}

type DonorStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// DonorStatusEvent is published after a donor's status actually changed.
type DonorStatusEvent struct {
	DonorID   string      `json:"donorId"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	From      DonorStatus `json:"from"`
	To        DonorStatus `json:"to"`
	ChangedAt time.Time   `json:"changedAt"`
}
