package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.DonorStatusEvent
	err    error
}

func (n *recordingNotifier) DonorStatusChanged(_ context.Context, e domain.DonorStatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type brokenSessions struct{}

func (brokenSessions) NewSession(context.Context, domain.Session) (string, error) {
	return "", errors.New("session backend down")
}

func (brokenSessions) GetSession(context.Context, string) (domain.Session, bool, error) {
	return domain.Session{}, false, errors.New("session backend down")
}

func (brokenSessions) DeleteSession(context.Context, string) error {
	return errors.New("session backend down")
}

func newTestApp(t *testing.T) (*App, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	a, err := New(context.Background(), Config{
		Store:    store.NewMemoryStore(),
		Sessions: store.NewMemorySessionStore(time.Hour),
		Notify:   n,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, n
}

func loginAsAdmin(t *testing.T, a *App) string {
	t.Helper()
	ctx := context.Background()
	_, err := a.SeedAdmin(ctx, "admin", "password", "Admin User")
	require.NoError(t, err)
	token, _, err := a.Login(ctx, "admin", "password")
	require.NoError(t, err)
	return token
}

func validDonorInput() domain.DonorInput {
	return domain.DonorInput{
		Name:      "Jane Doe",
		Email:     "jane@x.com",
		Phone:     "555-1234",
		BloodType: "O-",
		Age:       30,
		Address:   "1 Main St",
	}
}

func TestSubmitDonorStartsPending(t *testing.T) {
	a, _ := newTestApp(t)
	start := time.Now().UTC()

	d, err := a.SubmitDonor(context.Background(), validDonorInput())
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, domain.DonorPending, d.Status)
	assert.False(t, d.AppliedAt.Before(start))
	assert.Equal(t, "O-", d.BloodType)
}

func TestSubmitDonorValidation(t *testing.T) {
	a, _ := newTestApp(t)
	cases := map[string]struct {
		mutate func(*domain.DonorInput)
		want   *Error
	}{
		"missing name":       {func(in *domain.DonorInput) { in.Name = "  " }, ErrFieldsRequired},
		"missing blood type": {func(in *domain.DonorInput) { in.BloodType = "" }, ErrFieldsRequired},
		"malformed email":    {func(in *domain.DonorInput) { in.Email = "jane@" }, ErrInvalidEmail},
		"display name email": {func(in *domain.DonorInput) { in.Email = "Jane <jane@x.com>" }, ErrInvalidEmail},
		"short phone":        {func(in *domain.DonorInput) { in.Phone = "1234" }, ErrPhoneTooShort},
		"zero age":           {func(in *domain.DonorInput) { in.Age = 0 }, ErrInvalidAge},
		"negative age":       {func(in *domain.DonorInput) { in.Age = -3 }, ErrInvalidAge},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validDonorInput()
			tc.mutate(&in)
			_, err := a.SubmitDonor(context.Background(), in)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}

	token := loginAsAdmin(t, a)
	donors, err := a.ListDonors(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, donors)
}

func TestGatedOperationsRequireSession(t *testing.T) {
	a, n := newTestApp(t)
	ctx := context.Background()
	d, err := a.SubmitDonor(ctx, validDonorInput())
	require.NoError(t, err)

	for _, token := range []string{"", "forged-token"} {
		_, err = a.ListDonors(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = a.GetDonor(ctx, token, d.ID)
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = a.SetDonorStatus(ctx, token, d.ID, domain.DonorApproved)
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = a.SetDonorStatus(ctx, token, d.ID, domain.DonorRejected)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.ErrorIs(t, a.RemoveDonor(ctx, token, d.ID), ErrUnauthorized)
		_, err = a.DonorStats(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = a.ListContacts(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}

	token := loginAsAdmin(t, a)
	got, err := a.GetDonor(ctx, token, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonorPending, got.Status)
	assert.Zero(t, n.count())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	_, err := a.Register(ctx, "bob", "secret", "Bob")
	require.NoError(t, err)

	_, _, wrongPassword := a.Login(ctx, "bob", "nope")
	_, _, unknownUser := a.Login(ctx, "nobody", "secret")
	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, wrongPassword, unknownUser)
	assert.Equal(t, KindUnauthorized, KindOf(unknownUser))

	_, _, err = a.Login(ctx, "bob", "")
	assert.ErrorIs(t, err, ErrCredentialsRequired)
}

func TestCaseDifferingUsernamesBothWork(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.Register(ctx, "alice", "first-pass", "Alice One")
	require.NoError(t, err)
	_, err = a.Register(ctx, "Alice", "second-pass", "Alice Two")
	require.NoError(t, err)

	_, err = a.Register(ctx, "alice", "other", "Dup")
	require.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, KindConflict, KindOf(err))

	_, sess, err := a.Login(ctx, "ALICE", "first-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)

	_, sess, err = a.Login(ctx, "alice", "second-pass")
	require.NoError(t, err)
	assert.Equal(t, "Alice", sess.Username)
	assert.Equal(t, "Alice Two", sess.Name)
}

func TestRegisterRequiresAllFields(t *testing.T) {
	a, _ := newTestApp(t)
	for _, args := range [][3]string{{"", "pw", "Name"}, {"user", "", "Name"}, {"user", "pw", " "}} {
		_, err := a.Register(context.Background(), args[0], args[1], args[2])
		assert.ErrorIs(t, err, ErrFieldsRequired)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	token := loginAsAdmin(t, a)

	_, ok := a.CurrentSession(ctx, token)
	require.True(t, ok)
	require.NoError(t, a.Logout(ctx, token))
	require.NoError(t, a.Logout(ctx, token))
	require.NoError(t, a.Logout(ctx, ""))
	_, ok = a.CurrentSession(ctx, token)
	assert.False(t, ok)
}

func TestCurrentSessionTreatsStoreErrorsAsNone(t *testing.T) {
	a, err := New(context.Background(), Config{
		Store:    store.NewMemoryStore(),
		Sessions: brokenSessions{},
		Notify:   &recordingNotifier{},
	})
	require.NoError(t, err)

	_, ok := a.CurrentSession(context.Background(), "any")
	assert.False(t, ok)
	_, err = a.ListDonors(context.Background(), "any")
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = a.Logout(context.Background(), "any")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestSetDonorStatusNotifiesOnlyOnChange(t *testing.T) {
	a, n := newTestApp(t)
	ctx := context.Background()
	token := loginAsAdmin(t, a)
	d, err := a.SubmitDonor(ctx, validDonorInput())
	require.NoError(t, err)

	updated, err := a.SetDonorStatus(ctx, token, d.ID, domain.DonorApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.DonorApproved, updated.Status)
	assert.Equal(t, 1, n.count())

	_, err = a.SetDonorStatus(ctx, token, d.ID, domain.DonorApproved)
	require.NoError(t, err)
	assert.Equal(t, 1, n.count())

	updated, err = a.SetDonorStatus(ctx, token, d.ID, domain.DonorRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.DonorRejected, updated.Status)
	require.Equal(t, 2, n.count())
	assert.Equal(t, domain.DonorApproved, n.events[1].From)
	assert.Equal(t, domain.DonorRejected, n.events[1].To)
	assert.Equal(t, d.Email, n.events[1].Email)
}

func TestSetDonorStatusRejectsBadInput(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	token := loginAsAdmin(t, a)
	d, err := a.SubmitDonor(ctx, validDonorInput())
	require.NoError(t, err)

	_, err = a.SetDonorStatus(ctx, token, d.ID, domain.DonorPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = a.SetDonorStatus(ctx, token, d.ID, domain.DonorStatus("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = a.SetDonorStatus(ctx, token, "missing", domain.DonorApproved)
	assert.ErrorIs(t, err, ErrDonorNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSetDonorStatusSurvivesNotifierFailure(t *testing.T) {
	a, n := newTestApp(t)
	n.err = errors.New("broker unreachable")
	ctx := context.Background()
	token := loginAsAdmin(t, a)
	d, err := a.SubmitDonor(ctx, validDonorInput())
	require.NoError(t, err)

	updated, err := a.SetDonorStatus(ctx, token, d.ID, domain.DonorRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.DonorRejected, updated.Status)

	got, err := a.GetDonor(ctx, token, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonorRejected, got.Status)
}

func TestRemoveDonorTwiceIsNotFound(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	token := loginAsAdmin(t, a)
	d, err := a.SubmitDonor(ctx, validDonorInput())
	require.NoError(t, err)

	require.NoError(t, a.RemoveDonor(ctx, token, d.ID))
	assert.ErrorIs(t, a.RemoveDonor(ctx, token, d.ID), ErrDonorNotFound)
	_, err = a.GetDonor(ctx, token, d.ID)
	assert.ErrorIs(t, err, ErrDonorNotFound)
}

func TestListDonorsNewestFirst(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	token := loginAsAdmin(t, a)

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		in := validDonorInput()
		in.Name = name
		d, err := a.SubmitDonor(ctx, in)
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	donors, err := a.ListDonors(ctx, token)
	require.NoError(t, err)
	require.Len(t, donors, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{donors[0].ID, donors[1].ID, donors[2].ID})
}

func TestDonorStats(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	token := loginAsAdmin(t, a)
	var ids []string
	for i := 0; i < 4; i++ {
		d, err := a.SubmitDonor(ctx, validDonorInput())
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}
	_, err := a.SetDonorStatus(ctx, token, ids[0], domain.DonorApproved)
	require.NoError(t, err)
	_, err = a.SetDonorStatus(ctx, token, ids[1], domain.DonorRejected)
	require.NoError(t, err)

	stats, err := a.DonorStats(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.DonorStats{Total: 4, Pending: 2, Approved: 1, Rejected: 1}, stats)
}

func TestSubmitContactMissingSubjectCreatesNothing(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	token := loginAsAdmin(t, a)

	before, err := a.ListContacts(ctx, token)
	require.NoError(t, err)
	_, err = a.SubmitContact(ctx, domain.ContactInput{Name: "Q", Email: "q@example.com", Message: "hello"})
	require.ErrorIs(t, err, ErrFieldsRequired)
	after, err := a.ListContacts(ctx, token)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	_, err = a.SubmitContact(ctx, domain.ContactInput{Name: "Q", Email: "not-an-email", Subject: "s", Message: "m"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	msg, err := a.SubmitContact(ctx, domain.ContactInput{Name: "Q", Email: "q@example.com", Subject: "Hours", Message: "When are you open?"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestSeedAdminSkipsExisting(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	created, err := a.SeedAdmin(ctx, "admin", "password", "Admin User")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = a.SeedAdmin(ctx, "admin", "other", "Admin User")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = a.Login(ctx, "admin", "password")
	require.NoError(t, err)
}

func TestNewOpensConfiguredBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := New(context.Background(), Config{
		StoreDriver:   "sqlite",
		SQLitePath:    filepath.Join(t.TempDir(), "donors.db"),
		SessionStore:  "redis",
		RedisAddr:     mr.Addr(),
		Notifier:      "redis",
		NotifyStream:  "donor:status-events",
		SessionTTL:    time.Hour,
		NotifyTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	token := loginAsAdmin(t, a)
	d, err := a.SubmitDonor(ctx, validDonorInput())
	require.NoError(t, err)
	_, err = a.SetDonorStatus(ctx, token, d.ID, domain.DonorApproved)
	require.NoError(t, err)

	entries, err := mr.Stream("donor:status-events")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewRejectsUnknownDrivers(t *testing.T) {
	_, err := New(context.Background(), Config{StoreDriver: "mongo"})
	assert.Error(t, err)
	_, err = New(context.Background(), Config{SessionStore: "cookie"})
	assert.Error(t, err)
	_, err = New(context.Background(), Config{SessionStore: "jwt", SessionSecret: "short"})
	assert.Error(t, err)
	_, err = New(context.Background(), Config{Notifier: "pigeon"})
	assert.Error(t, err)
}

func TestOverlongPasswordIsValidationError(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	long := strings.Repeat("p", 80)

	_, err := a.Register(ctx, "alice", long, "Alice")
	require.ErrorIs(t, err, ErrPasswordTooLong)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = a.SeedAdmin(ctx, "root", long, "Root")
	require.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = a.Register(ctx, "bob", strings.Repeat("p", 72), "Bob")
	require.NoError(t, err)
}

func TestConcurrentLoginsGetIndependentSessions(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	_, err := a.SeedAdmin(ctx, "admin", "password", "Admin User")
	require.NoError(t, err)

	const n = 16
	tokens := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _, errs[i] = a.Login(ctx, "admin", "password")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotEmpty(t, tokens[i])
		assert.False(t, seen[tokens[i]], "duplicate token")
		seen[tokens[i]] = true

		sess, ok := a.CurrentSession(ctx, tokens[i])
		require.True(t, ok)
		assert.Equal(t, "admin", sess.Username)
	}

	require.NoError(t, a.Logout(ctx, tokens[0]))
	_, ok := a.CurrentSession(ctx, tokens[0])
	assert.False(t, ok)
	for _, tok := range tokens[1:] {
		_, ok := a.CurrentSession(ctx, tok)
		assert.True(t, ok)
	}
}
