package store

import (
	"crypto/rand"
	"encoding/base64"
	"sort"
	"strings"
	"time"

	"bloodlink/pkg/domain"
	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 string used as a record identifier.
func NewID() string {
	return uuid.NewString()
}

// NewToken returns a 256-bit URL-safe random session token.
func NewToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

func now() time.Time {
	return time.Now().UTC()
}

// sortAdminMatches puts the exact-case match (if any) ahead of fold matches.
func sortAdminMatches(username string, admins []domain.Admin) {
	sort.SliceStable(admins, func(i, j int) bool {
		ei := admins[i].Username == username
		ej := admins[j].Username == username
		if ei != ej {
			return ei
		}
		return admins[i].CreatedAt.Before(admins[j].CreatedAt)
	})
}

func foldEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
