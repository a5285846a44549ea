package store

import (
	"context"
	"sort"
	"sync"

	"bloodlink/pkg/domain"
)

type donorEntry struct {
	donor domain.Donor
	seq   uint64
}

type contactEntry struct {
	msg domain.ContactMessage
	seq uint64
}

// MemoryStore keeps all records in-process. Data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	admins   map[string]domain.Admin // key: admin ID
	donors   map[string]donorEntry
	contacts map[string]contactEntry
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		admins:   make(map[string]domain.Admin),
		donors:   make(map[string]donorEntry),
		contacts: make(map[string]contactEntry),
	}
}

// CreateAdmin stores a new admin.
func (m *MemoryStore) CreateAdmin(_ context.Context, a domain.Admin) (domain.Admin, error) {
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.admins {
		if existing.Username == a.Username {
			return domain.Admin{}, ErrDuplicateUsername
		}
	}
	m.admins[a.ID] = a
	return a, nil
}

// GetAdminByID returns an admin by ID.
func (m *MemoryStore) GetAdminByID(_ context.Context, id string) (domain.Admin, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[id]
	return a, ok, nil
}

// GetAdminByUsername looks up an admin by exact username.
func (m *MemoryStore) GetAdminByUsername(_ context.Context, username string) (domain.Admin, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.admins {
		if a.Username == username {
			return a, true, nil
		}
	}
	return domain.Admin{}, false, nil
}

// FindAdminsByUsername returns admins whose username matches ignoring case.
func (m *MemoryStore) FindAdminsByUsername(_ context.Context, username string) ([]domain.Admin, error) {
	m.mu.RLock()
	res := make([]domain.Admin, 0, 1)
	for _, a := range m.admins {
		if foldEqual(a.Username, username) {
			res = append(res, a)
		}
	}
	m.mu.RUnlock()
	sortAdminMatches(username, res)
	return res, nil
}

// CreateDonor stores a donor application.
func (m *MemoryStore) CreateDonor(_ context.Context, d domain.Donor) (domain.Donor, error) {
	if d.ID == "" {
		d.ID = NewID()
	}
	if d.AppliedAt.IsZero() {
		d.AppliedAt = now()
	}
	if d.Status == "" {
		d.Status = domain.DonorPending
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.donors[d.ID] = donorEntry{donor: d, seq: m.seq}
	return d, nil
}

// ListDonors returns donors newest first.
func (m *MemoryStore) ListDonors(_ context.Context) ([]domain.Donor, error) {
	m.mu.RLock()
	entries := make([]donorEntry, 0, len(m.donors))
	for _, e := range m.donors {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.donor.AppliedAt.Equal(b.donor.AppliedAt) {
			return a.donor.AppliedAt.After(b.donor.AppliedAt)
		}
		return a.seq > b.seq
	})
	res := make([]domain.Donor, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.donor)
	}
	return res, nil
}

// GetDonor retrieves a donor by ID.
func (m *MemoryStore) GetDonor(_ context.Context, id string) (domain.Donor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.donors[id]
	return e.donor, ok, nil
}

// SetDonorStatus updates the status of a donor and returns the updated record.
func (m *MemoryStore) SetDonorStatus(_ context.Context, id string, status domain.DonorStatus) (domain.Donor, bool, error) {
	if !status.Valid() {
		return domain.Donor{}, false, ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.donors[id]
	if !ok {
		return domain.Donor{}, false, nil
	}
	e.donor.Status = status
	m.donors[id] = e
	return e.donor, true, nil
}

// DeleteDonor removes a donor and reports whether it existed.
func (m *MemoryStore) DeleteDonor(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.donors[id]; !ok {
		return false, nil
	}
	delete(m.donors, id)
	return true, nil
}

// CountDonorsByStatus tallies donors per status.
func (m *MemoryStore) CountDonorsByStatus(_ context.Context) (map[domain.DonorStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.DonorStatus]int, 3)
	for _, e := range m.donors {
		counts[e.donor.Status]++
	}
	return counts, nil
}

// CreateContactMessage stores a contact form submission.
func (m *MemoryStore) CreateContactMessage(_ context.Context, msg domain.ContactMessage) (domain.ContactMessage, error) {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.contacts[msg.ID] = contactEntry{msg: msg, seq: m.seq}
	return msg, nil
}

// ListContactMessages returns contact messages newest first.
func (m *MemoryStore) ListContactMessages(_ context.Context) ([]domain.ContactMessage, error) {
	m.mu.RLock()
	entries := make([]contactEntry, 0, len(m.contacts))
	for _, e := range m.contacts {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.After(b.msg.CreatedAt)
		}
		return a.seq > b.seq
	})
	res := make([]domain.ContactMessage, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.msg)
	}
	return res, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
