package store

import (
	"testing"
	"time"

	"bloodlink/pkg/domain"

	"github.com/stretchr/testify/assert"
)

func TestGormModelsStoreMicrosecondTimestamps(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, loc)
	want := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)

	admin := adminFromModel(adminToModel(domain.Admin{ID: "a", CreatedAt: at}))
	assert.Equal(t, want, admin.CreatedAt)

	donor := donorFromModel(donorToModel(domain.Donor{ID: "d", AppliedAt: at}))
	assert.Equal(t, want, donor.AppliedAt)

	msg := contactFromModel(contactToModel(domain.ContactMessage{ID: "c", CreatedAt: at}))
	assert.Equal(t, want, msg.CreatedAt)
}

func TestPgTimeKeepsMicrosecondValues(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 5000, time.UTC)
	assert.Equal(t, at, pgTime(at))
	assert.True(t, pgTime(time.Time{}).IsZero())
}
