package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"coparent/internal/clock"
	"coparent/internal/database"
	"coparent/internal/metrics"
	"coparent/internal/models"
	"coparent/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []InvitationEmail
	err  error
}

func (f *fakeNotifier) SendInvitation(ctx context.Context, msg InvitationEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

type roleCall struct {
	subject string
	role    models.ParentRole
}

type fakeRoleSync struct {
	mu      sync.Mutex
	calls   []roleCall
	roles   map[string]models.ParentRole
	failOn  int // 1-based call number that fails, 0 for never
	delay   time.Duration
	callNum int
}

func newFakeRoleSync() *fakeRoleSync {
	return &fakeRoleSync{roles: map[string]models.ParentRole{}}
}

func (f *fakeRoleSync) SetRole(ctx context.Context, subject string, role models.ParentRole) error {
	f.mu.Lock()
	f.callNum++
	n := f.callNum
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, roleCall{subject: subject, role: role})
	if f.failOn != 0 && n == f.failOn {
		return errors.New("identity provider unavailable")
	}
	f.roles[subject] = role
	return nil
}

func (f *fakeRoleSync) roleOf(subject string) models.ParentRole {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[subject]
}

type testEnv struct {
	db          *database.DB
	clock       *clock.FakeClock
	notifier    *fakeNotifier
	roles       *fakeRoleSync
	identity    *IdentityService
	families    *FamilyService
	invitations *InvitationService
	transfers   *TransferService
	expenses    *ExpenseService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	clk := clock.Fake(testStart)
	locks := NewFamilyLocks()
	m := metrics.New(prometheus.NewRegistry())
	env := &testEnv{
		db:       db,
		clock:    clk,
		notifier: &fakeNotifier{},
		roles:    newFakeRoleSync(),
	}
	env.identity = NewIdentityService(repository.NewUserRepository(db), clk)
	env.families = NewFamilyService(db, locks, clk)
	env.invitations = NewInvitationService(db, locks, clk, env.notifier, m, DefaultInvitationTTL, "https://coparent.test/")
	env.transfers = NewTransferService(db, locks, clk, env.roles, m, 200*time.Millisecond)
	env.expenses = NewExpenseService(db, clk)
	return env
}

func (e *testEnv) user(t *testing.T, subject string) *models.User {
	t.Helper()
	u, err := e.identity.Resolve(context.Background(), subject, subject+"@example.com")
	if err != nil {
		t.Fatalf("Resolve(%s): %v", subject, err)
	}
	return u
}

// founded creates a user and a family with that user as admin
func (e *testEnv) founded(t *testing.T, subject string) (*models.User, *models.MembershipContext) {
	t.Helper()
	u := e.user(t, subject)
	mc, _, err := e.families.CreateFamily(context.Background(), u, subject+" family", []models.ChildInput{{Name: "Sam"}})
	if err != nil {
		t.Fatalf("CreateFamily: %v", err)
	}
	return u, mc
}

// pair creates a complete two-parent family
func (e *testEnv) pair(t *testing.T) (admin, co *models.User) {
	t.Helper()
	admin, _ = e.founded(t, "admin")
	co = e.user(t, "co")
	issued, err := e.invitations.Issue(context.Background(), admin, "co@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := e.invitations.Accept(context.Background(), issued.Token, co); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return admin, co
}

func (e *testEnv) parentOf(t *testing.T, u *models.User) *models.Parent {
	t.Helper()
	mc, err := e.families.GetMembershipContext(context.Background(), u)
	if err != nil {
		t.Fatalf("GetMembershipContext: %v", err)
	}
	if !mc.HasFamily() {
		t.Fatalf("user %d has no family", u.ID)
	}
	return mc.Parent
}

func (e *testEnv) countAdmins(t *testing.T, familyID int64) int {
	t.Helper()
	n, err := e.families.families.CountAdmins(context.Background(), familyID)
	if err != nil {
		t.Fatalf("CountAdmins: %v", err)
	}
	return n
}

func assertErr(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("error = %v, want %v", got, want)
	}
}
