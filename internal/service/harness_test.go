package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/templui/vaultgate/internal/lifecycle"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
	"github.com/templui/vaultgate/internal/service"
	"github.com/templui/vaultgate/internal/storage"
	"github.com/templui/vaultgate/internal/testutil"
)

const testPassword = "correct-horse-battery"

type mailbox struct {
	mu        sync.Mutex
	locked    []string
	destroyed []string
}

func (m *mailbox) SendAccountLockedEmail(ctx context.Context, email, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, email)
	return nil
}

func (m *mailbox) SendFileDestroyedEmail(ctx context.Context, email, name, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = append(m.destroyed, email+":"+fileName)
	return nil
}

type harness struct {
	store  *repository.Store
	blobs  *storage.MemoryStorage
	events *testutil.Notifier
	mail   *mailbox
	clock  *testutil.StubClock

	ledger   *service.Ledger
	auth     *service.AuthService
	files    *service.FileService
	folders  *service.FolderService
	projects *service.ProjectService
	users    *service.UserService
	security *service.SecurityService
	audit    *service.AuditService
	sweeper  *lifecycle.Sweeper
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithBlobs(t, nil)
}

// newHarnessWithBlobs puts wrap's BlobStore in front of the in-memory one
// for every service that writes or removes blobs.
func newHarnessWithBlobs(t *testing.T, wrap func(storage.BlobStore) storage.BlobStore) *harness {
	t.Helper()

	h := &harness{
		store:  testutil.NewTestStore(t),
		blobs:  storage.NewMemoryStorage(),
		events: &testutil.Notifier{},
		mail:   &mailbox{},
		clock:  testutil.FixedClock(),
	}

	var blobs storage.BlobStore = h.blobs
	if wrap != nil {
		blobs = wrap(h.blobs)
	}

	access := service.NewAccess(h.store, h.events, h.clock)
	h.ledger = service.NewLedger(h.store, h.clock)
	h.auth = service.NewAuthService(h.store, h.events, h.mail, h.clock, "test-secret", time.Hour)
	h.files = service.NewFileService(h.store, blobs, h.ledger, service.NewVersionChain(h.clock), access, h.events, h.mail, h.clock, 10<<20)
	h.folders = service.NewFolderService(h.store, h.files, access, h.events, h.clock)
	h.projects = service.NewProjectService(h.store, access, h.events, h.clock)
	h.users = service.NewUserService(h.store, h.auth, h.ledger, access, blobs, h.events, h.clock, 5<<30)
	h.security = service.NewSecurityService(h.store, h.clock, policy.DefaultThresholds)
	h.audit = service.NewAuditService(h.store, h.events, h.clock)

	h.sweeper = lifecycle.NewSweeper(h.clock, nil)
	h.sweeper.Register(lifecycle.KindProjectExpiry, h.projects.ExpirySource())
	h.sweeper.Register(lifecycle.KindFileSelfDestruct, h.files.SelfDestructSource())
	h.sweeper.Register(lifecycle.KindAccountInactivity, h.users.InactivitySource())
	return h
}

// user inserts an active account directly, bypassing the admin-only path.
func (h *harness) user(t *testing.T, role string, quota int64) *model.User {
	t.Helper()

	hash, err := h.auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id := uuid.New().String()
	now := h.clock.Now()
	u := &model.User{
		ID:           id,
		Email:        id[:8] + "@example.com",
		EmpID:        "E-" + id[:8],
		Name:         role + " " + id[:4],
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		LastLogin:    &now,
		Quota:        quota,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = h.store.Users.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (h *harness) reload(t *testing.T, u *model.User) *model.User {
	t.Helper()
	fresh, err := h.store.Users.ByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return fresh
}

func (h *harness) folder(t *testing.T, owner *model.User, name string, private bool) *model.Folder {
	t.Helper()
	f, err := h.folders.Create(context.Background(), owner, service.CreateFolderInput{Name: name, Private: private})
	if err != nil {
		t.Fatalf("create folder %q: %v", name, err)
	}
	return f
}

func (h *harness) upload(p *model.User, folderID *string, name string, size int) (*service.UploadResult, error) {
	return h.files.Upload(context.Background(), p, service.UploadInput{
		FolderID: folderID,
		Name:     name,
		Content:  strings.NewReader(strings.Repeat("x", size)),
	})
}

func (h *harness) mustUpload(t *testing.T, p *model.User, folderID *string, name string, size int) *service.UploadResult {
	t.Helper()
	res, err := h.upload(p, folderID, name, size)
	if err != nil {
		t.Fatalf("upload %q (%d bytes): %v", name, size, err)
	}
	return res
}

// assertLedger checks the stored counter against the live file sizes.
func (h *harness) assertLedger(t *testing.T, u *model.User) {
	t.Helper()
	live, err := h.store.Files.LiveSize(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("live size: %v", err)
	}
	if got := h.reload(t, u).StorageUsed; got != live {
		t.Errorf("storage_used = %d, live files total %d", got, live)
	}
}
