package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/service"
)

func TestUploadNewVersionChargesNetDelta(t *testing.T) {
	h := newHarness(t)
	p := h.user(t, model.RoleMember, 5<<20)
	f := h.folder(t, p, "Reports", false)

	first := h.mustUpload(t, p, &f.ID, "report.pdf", 500_000)
	if !first.Created || first.Version.VersionNumber != 1 || first.File.Size != 500_000 {
		t.Fatalf("first upload = created %v, version %d, size %d", first.Created, first.Version.VersionNumber, first.File.Size)
	}
	if got := h.reload(t, p).StorageUsed; got != 500_000 {
		t.Fatalf("storage_used after first upload = %d, want 500000", got)
	}

	second := h.mustUpload(t, p, &f.ID, "report.pdf", 700_000)
	if second.Created {
		t.Error("second upload started a new lineage")
	}
	if second.File.ID != first.File.ID {
		t.Errorf("second upload file id = %s, want %s", second.File.ID, first.File.ID)
	}
	if second.Version.VersionNumber != 2 || second.File.Size != 700_000 {
		t.Errorf("second upload = version %d, size %d", second.Version.VersionNumber, second.File.Size)
	}
	if got := h.reload(t, p).StorageUsed; got != 700_000 {
		t.Errorf("storage_used after second upload = %d, want 700000", got)
	}

	if n := len(h.events.ByAction(model.ActionVersionUpload)); n != 1 {
		t.Errorf("version_upload events = %d, want 1", n)
	}
}

func TestUploadShrinkingVersionReleasesBytes(t *testing.T) {
	h := newHarness(t)
	p := h.user(t, model.RoleMember, 1<<20)

	h.mustUpload(t, p, nil, "notes.txt", 4000)
	h.mustUpload(t, p, nil, "notes.txt", 1000)

	if got := h.reload(t, p).StorageUsed; got != 1000 {
		t.Errorf("storage_used = %d, want 1000", got)
	}
}

func TestUploadOverQuotaLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	p := h.user(t, model.RoleMember, 1000)

	h.mustUpload(t, p, nil, "a.txt", 600)
	blobs := h.blobs.Len()

	_, err := h.upload(p, nil, "b.txt", 600)
	if !errors.Is(err, service.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	var qe *service.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %T, want *QuotaExceededError", err)
	}
	if qe.Remaining != 400 || qe.Requested != 600 {
		t.Errorf("quota error = requested %d remaining %d, want 600/400", qe.Requested, qe.Remaining)
	}

	if got := h.reload(t, p).StorageUsed; got != 600 {
		t.Errorf("storage_used = %d, want 600", got)
	}
	if h.blobs.Len() != blobs {
		t.Errorf("blob count = %d, want %d", h.blobs.Len(), blobs)
	}
	_, err = h.store.Files.ByIdentity(context.Background(), p.ID, nil, "b.txt")
	if err == nil {
		t.Error("rejected upload left a file row")
	}
}

func TestUploadFillingQuotaExactly(t *testing.T) {
	h := newHarness(t)
	p := h.user(t, model.RoleMember, 1000)

	h.mustUpload(t, p, nil, "a.txt", 1000)
	if got := h.reload(t, p).Remaining(); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}

	_, err := h.upload(p, nil, "b.txt", 1)
	if !errors.Is(err, service.ErrQuotaExceeded) {
		t.Errorf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t)
	p := h.user(t, model.RoleMember, 1<<20)

	tests := []struct {
		name string
		file string
		want error
	}{
		{"empty name", "", service.ErrInvalidInput},
		{"path separator", "../etc/passwd", service.ErrInvalidInput},
		{"dot", ".", service.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.upload(p, nil, tt.file, 10)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	missing := "no-such-folder"
	_, err := h.upload(p, &missing, "a.txt", 10)
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("upload into missing folder err = %v, want ErrNotFound", err)
	}

	for _, offset := range []time.Duration{-time.Hour, 0} {
		at := h.clock.Now().Add(offset)
		_, err := h.files.Upload(context.Background(), p, service.UploadInput{
			Name:      "stale.txt",
			Content:   strings.NewReader("x"),
			ExpiresAt: &at,
		})
		if !errors.Is(err, service.ErrInvalidInput) {
			t.Errorf("expires_at now%+v err = %v, want ErrInvalidInput", offset, err)
		}
	}
	if used := h.reload(t, p).StorageUsed; used != 0 {
		t.Errorf("storage_used after rejected uploads = %d, want 0", used)
	}
}

func TestDeletedLineageRestartsAtVersionOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.user(t, model.RoleMember, 1<<20)

	old := h.mustUpload(t, p, nil, "plan.txt", 100)
	h.mustUpload(t, p, nil, "plan.txt", 150)

	err := h.files.Delete(ctx, p, old.File.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := h.reload(t, p).StorageUsed; got != 0 {
		t.Errorf("storage_used after delete = %d, want 0", got)
	}

	_, err = h.files.Get(ctx, p, old.File.ID)
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("get deleted file err = %v, want ErrNotFound", err)
	}
	err = h.files.Delete(ctx, p, old.File.ID)
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	fresh := h.mustUpload(t, p, nil, "plan.txt", 80)
	if !fresh.Created || fresh.File.ID == old.File.ID || fresh.Version.VersionNumber != 1 {
		t.Errorf("re-upload = created %v, same id %v, version %d", fresh.Created, fresh.File.ID == old.File.ID, fresh.Version.VersionNumber)
	}
	h.assertLedger(t, p)
}

func TestConcurrentUploadsStayGapless(t *testing.T) {
	h := newHarness(t)
	p := h.user(t, model.RoleMember, 1<<20)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.upload(p, nil, "shared.bin", 100+i)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upload: %v", err)
		}
	}

	file, err := h.store.Files.ByIdentity(context.Background(), p.ID, nil, "shared.bin")
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	versions, err := h.store.Versions.ByFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("load versions: %v", err)
	}
	if len(versions) != writers || file.CurrentVersion != writers {
		t.Fatalf("versions = %d, current = %d, want %d", len(versions), file.CurrentVersion, writers)
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Errorf("versions[%d] = %d, want %d", i, v.VersionNumber, i+1)
		}
	}
	if last := versions[len(versions)-1]; last.Size != file.Size || last.StoragePath != file.StoragePath {
		t.Errorf("file does not point at its newest version")
	}
	h.assertLedger(t, p)
}

func TestLedgerMatchesLiveFilesUnderRandomWorkload(t *testing.T) {
	for _, seed := range []uint64{1, 7, 42} {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			p := h.user(t, model.RoleMember, 20_000)
			rng := rand.New(rand.NewPCG(seed, seed))
			names := []string{"a.txt", "b.txt", "c.txt", "d.txt"}

			for step := range 60 {
				name := names[rng.IntN(len(names))]
				if rng.IntN(3) == 0 {
					file, err := h.store.Files.ByIdentity(ctx, p.ID, nil, name)
					if err == nil {
						if err := h.files.Delete(ctx, p, file.ID); err != nil {
							t.Fatalf("step %d delete: %v", step, err)
						}
					}
				} else {
					_, err := h.upload(p, nil, name, 1+rng.IntN(8000))
					if err != nil && !errors.Is(err, service.ErrQuotaExceeded) {
						t.Fatalf("step %d upload: %v", step, err)
					}
				}

				h.assertLedger(t, p)
				if u := h.reload(t, p); u.StorageUsed > u.Quota || u.StorageUsed < 0 {
					t.Fatalf("step %d storage_used = %d outside [0, %d]", step, u.StorageUsed, u.Quota)
				}
			}
		})
	}
}

func TestDownloadVersions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.user(t, model.RoleMember, 1<<20)

	res, err := h.files.Upload(ctx, p, service.UploadInput{Name: "v.txt", Content: strings.NewReader("first")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	_, err = h.files.Upload(ctx, p, service.UploadInput{Name: "v.txt", Content: strings.NewReader("second")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	tests := []struct {
		version int
		want    string
	}{
		{0, "second"},
		{1, "first"},
		{2, "second"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.version), func(t *testing.T) {
			_, rc, err := h.files.Download(ctx, p, res.File.ID, tt.version)
			if err != nil {
				t.Fatalf("download: %v", err)
			}
			defer rc.Close()
			body, _ := io.ReadAll(rc)
			if string(body) != tt.want {
				t.Errorf("content = %q, want %q", body, tt.want)
			}
		})
	}

	_, _, err = h.files.Download(ctx, p, res.File.ID, 9)
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("missing version err = %v, want ErrNotFound", err)
	}

	file, err := h.store.Files.ByID(ctx, res.File.ID)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if file.DownloadCount != 3 || file.LastAccessedAt == nil {
		t.Errorf("download_count = %d, last_accessed = %v", file.DownloadCount, file.LastAccessedAt)
	}
}

func TestPrivateFolderDeniesOthers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, model.RoleMember, 1<<20)
	other := h.user(t, model.RoleMember, 1<<20)
	admin := h.user(t, model.RoleAdmin, 1<<20)

	f := h.folder(t, owner, "Secret", true)
	res := h.mustUpload(t, owner, &f.ID, "salary.xlsx", 100)
	if !res.File.IsPrivate {
		t.Fatal("file in private folder is not private")
	}

	_, err := h.files.Get(ctx, other, res.File.ID)
	var denied *service.AccessDeniedError
	if !errors.As(err, &denied) || denied.Reason != policy.ReasonPrivate {
		t.Fatalf("err = %v, want access denied (private)", err)
	}

	events := h.events.ByAction(model.ActionAccessDenied)
	if len(events) != 1 {
		t.Fatalf("access_denied events = %d, want 1", len(events))
	}
	if e := events[0]; e.Severity != model.SeverityWarning || e.UserID != other.ID || e.TargetID != res.File.ID {
		t.Errorf("denial event = %+v", e)
	}

	if _, err := h.files.Get(ctx, owner, res.File.ID); err != nil {
		t.Errorf("owner get: %v", err)
	}
	if _, err := h.files.Get(ctx, admin, res.File.ID); err != nil {
		t.Errorf("admin get: %v", err)
	}
}

func TestSharedFolderPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, model.RoleMember, 1<<20)
	other := h.user(t, model.RoleMember, 1<<20)

	f := h.folder(t, owner, "Shared", false)
	res := h.mustUpload(t, owner, &f.ID, "doc.txt", 100)

	if _, err := h.files.Get(ctx, other, res.File.ID); err != nil {
		t.Errorf("read shared file: %v", err)
	}
	if err := h.files.Delete(ctx, other, res.File.ID); !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("non-owner delete err = %v, want ErrAccessDenied", err)
	}

	// Writing into someone else's shared folder starts the writer's own lineage.
	theirs := h.mustUpload(t, other, &f.ID, "doc.txt", 50)
	if !theirs.Created || theirs.File.OwnerID != other.ID {
		t.Errorf("upload by other = created %v owner %s", theirs.Created, theirs.File.OwnerID)
	}
	h.assertLedger(t, owner)
	h.assertLedger(t, other)
}

func TestListAllRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	member := h.user(t, model.RoleMember, 1<<20)
	admin := h.user(t, model.RoleAdmin, 1<<20)
	h.mustUpload(t, member, nil, "a.txt", 10)

	_, err := h.files.ListAll(ctx, member)
	if !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("member list all err = %v, want ErrAccessDenied", err)
	}
	files, err := h.files.ListAll(ctx, admin)
	if err != nil || len(files) != 1 {
		t.Errorf("admin list all = %d files, err %v", len(files), err)
	}
}

func TestSearchKeepsPrivateModeSeparate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, model.RoleMember, 1<<20)
	bob := h.user(t, model.RoleMember, 1<<20)
	admin := h.user(t, model.RoleAdmin, 1<<20)

	vault := h.folder(t, alice, "Vault", true)
	h.mustUpload(t, alice, nil, "report-q1.txt", 10)
	h.mustUpload(t, alice, &vault.ID, "report-secret.txt", 20)
	h.mustUpload(t, bob, nil, "report-bob.txt", 30)

	names := func(files []*model.File) string {
		var out []string
		for _, f := range files {
			out = append(out, f.OriginalName)
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name      string
		principal *model.User
		in        service.SearchInput
		want      string
	}{
		{"member sees own non-private", alice, service.SearchInput{Text: "report"}, "report-q1.txt"},
		{"member private mode", alice, service.SearchInput{Text: "report", Private: true}, "report-secret.txt"},
		{"other member private mode is empty", bob, service.SearchInput{Private: true}, ""},
		{"admin spans owners", admin, service.SearchInput{Text: "report", SortBy: "name", Asc: true}, "report-bob.txt,report-q1.txt"},
		{"admin private mode", admin, service.SearchInput{Private: true}, "report-secret.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := h.files.Search(ctx, tt.principal, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got := names(files); got != tt.want {
				t.Errorf("results = %q, want %q", got, tt.want)
			}
		})
	}

	size := func(n int64) *int64 { return &n }
	later := h.clock.Now().Add(time.Hour)
	earlier := h.clock.Now()
	invalid := []service.SearchInput{
		{SortBy: "owner"},
		{MinSize: size(-1)},
		{MinSize: size(10), MaxSize: size(5)},
		{From: &later, To: &earlier},
	}
	for _, in := range invalid {
		_, err := h.files.Search(ctx, alice, in)
		if !errors.Is(err, service.ErrInvalidInput) {
			t.Errorf("Search(%+v) err = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestConcurrentDeletesReleaseOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, model.RoleMember, 1<<20)
	admin := h.user(t, model.RoleAdmin, 1<<20)
	res := h.mustUpload(t, owner, nil, "shared.txt", 400)
	h.mustUpload(t, owner, nil, "keep.txt", 100)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := owner
			if i%2 == 1 {
				p = admin
			}
			errs[i] = h.files.Delete(ctx, p, res.File.ID)
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, service.ErrNotFound):
			t.Errorf("delete err = %v, want nil or ErrNotFound", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful deletes = %d, want 1", ok)
	}
	if got := h.reload(t, owner).StorageUsed; got != 100 {
		t.Errorf("storage_used = %d, want 100", got)
	}
	if got := len(h.events.ByAction(model.ActionDelete)); got != 1 {
		t.Errorf("delete events = %d, want 1", got)
	}
	h.assertLedger(t, owner)
}
