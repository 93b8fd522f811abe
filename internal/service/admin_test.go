package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/service"
	"github.com/templui/vaultgate/internal/testutil"
)

func TestFolderDeleteReleasesEachOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, model.RoleMember, 1<<20)
	guest := h.user(t, model.RoleMember, 1<<20)

	f := h.folder(t, owner, "Team", false)
	h.mustUpload(t, owner, &f.ID, "a.txt", 300)
	h.mustUpload(t, owner, &f.ID, "a.txt", 500)
	h.mustUpload(t, guest, &f.ID, "b.txt", 200)
	h.mustUpload(t, owner, nil, "outside.txt", 50)

	if _, err := h.folders.Delete(ctx, guest, f.ID); !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("guest delete err = %v, want ErrAccessDenied", err)
	}

	n, err := h.folders.Delete(ctx, owner, f.ID)
	if err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted files = %d, want 2", n)
	}
	if got := h.reload(t, owner).StorageUsed; got != 50 {
		t.Errorf("owner storage_used = %d, want 50", got)
	}
	if got := h.reload(t, guest).StorageUsed; got != 0 {
		t.Errorf("guest storage_used = %d, want 0", got)
	}
	if _, err := h.folders.Get(ctx, owner, f.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("get deleted folder err = %v, want ErrNotFound", err)
	}
}

func TestFolderCreateRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, model.RoleMember, 1<<20)
	other := h.user(t, model.RoleMember, 1<<20)

	parent := h.folder(t, owner, "Vault", true)

	child, err := h.folders.Create(ctx, owner, service.CreateFolderInput{Name: "Inner", ParentID: &parent.ID})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if !child.IsPrivate {
		t.Error("child of private folder is not private")
	}

	tests := []struct {
		name string
		who  *model.User
		in   service.CreateFolderInput
		want error
	}{
		{"duplicate", owner, service.CreateFolderInput{Name: "Vault"}, service.ErrConflict},
		{"reserved prefix", owner, service.CreateFolderInput{Name: model.ProjectFolderPrefix + "X"}, service.ErrInvalidInput},
		{"blank", owner, service.CreateFolderInput{Name: "  "}, service.ErrInvalidInput},
		{"private parent", other, service.CreateFolderInput{Name: "Sneak", ParentID: &parent.ID}, service.ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.folders.Create(ctx, tt.who, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := h.folders.Delete(ctx, owner, parent.ID); !errors.Is(err, service.ErrConflict) {
		t.Errorf("delete non-empty parent err = %v, want ErrConflict", err)
	}

	visible, err := h.folders.List(ctx, other)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("other sees %d private folders", len(visible))
	}
}

func TestProjectAdministration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, model.RoleAdmin, 1<<20)
	member := h.user(t, model.RoleMember, 1<<20)
	later := h.user(t, model.RoleMember, 1<<20)

	_, err := h.projects.Create(ctx, member, service.CreateProjectInput{Name: "Nope", ExpiresAt: h.clock.Now().Add(time.Hour)})
	if !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("member create err = %v, want ErrAccessDenied", err)
	}
	_, err = h.projects.Create(ctx, admin, service.CreateProjectInput{Name: "Past", ExpiresAt: h.clock.Now()})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("past expiry err = %v, want ErrInvalidInput", err)
	}
	_, err = h.projects.Create(ctx, admin, service.CreateProjectInput{Name: "Ghost", ExpiresAt: h.clock.Now().Add(time.Hour), Members: []string{"missing"}})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("unknown member err = %v, want ErrInvalidInput", err)
	}

	project, err := h.projects.Create(ctx, admin, service.CreateProjectInput{
		Name:      "Launch",
		ExpiresAt: h.clock.Now().Add(48 * time.Hour),
		Members:   []string{member.ID, member.ID},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	folder, err := h.store.Folders.ByID(ctx, project.FolderID)
	if err != nil {
		t.Fatalf("project folder: %v", err)
	}
	if folder.Name != "[Project] Launch" || folder.ProjectID == nil || *folder.ProjectID != project.ID {
		t.Errorf("project folder = %q project %v", folder.Name, folder.ProjectID)
	}
	if _, err := h.folders.Delete(ctx, admin, folder.ID); !errors.Is(err, service.ErrConflict) {
		t.Errorf("delete project folder err = %v, want ErrConflict", err)
	}

	mine, err := h.projects.List(ctx, member)
	if err != nil || len(mine) != 1 {
		t.Fatalf("member list = %d, %v", len(mine), err)
	}
	if _, err := h.projects.Get(ctx, later, project.ID); !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("unassigned get err = %v, want ErrAccessDenied", err)
	}

	if err := h.projects.AddMember(ctx, admin, project.ID, later.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := h.projects.Get(ctx, later, project.ID); err != nil {
		t.Errorf("get after add: %v", err)
	}

	extended := h.clock.Now().Add(96 * time.Hour)
	updated, err := h.projects.Update(ctx, admin, project.ID, service.UpdateProjectInput{ExpiresAt: &extended})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !updated.ExpiresAt.Equal(extended) {
		t.Errorf("expires_at = %v, want %v", updated.ExpiresAt, extended)
	}

	if err := h.projects.Archive(ctx, admin, project.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := h.projects.Get(ctx, member, project.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("member get archived err = %v, want ErrNotFound", err)
	}
	if _, err := h.projects.Update(ctx, admin, project.ID, service.UpdateProjectInput{ExpiresAt: &extended}); !errors.Is(err, service.ErrResourceExpired) {
		t.Errorf("update archived err = %v, want ErrResourceExpired", err)
	}
	all, err := h.projects.ListAll(ctx, admin, true)
	if err != nil || len(all) != 1 || all[0].Status != model.ProjectStatusArchived {
		t.Errorf("list all = %+v, %v", all, err)
	}
	active, err := h.projects.List(ctx, admin)
	if err != nil || len(active) != 0 {
		t.Errorf("list without archived = %d, %v", len(active), err)
	}
}

func TestUserAdministration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, model.RoleAdmin, 1<<20)
	otherAdmin := h.user(t, model.RoleAdmin, 1<<20)

	member, err := h.users.Create(ctx, admin, service.CreateUserInput{
		Email:    "Dana@Example.com",
		EmpID:    "E-1001",
		Name:     "Dana",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if member.Email != "dana@example.com" || member.Role != model.RoleMember || member.Quota != 5<<30 {
		t.Errorf("created = %s %s %d", member.Email, member.Role, member.Quota)
	}
	_, err = h.users.Create(ctx, admin, service.CreateUserInput{Email: "dana@example.com", EmpID: "E-1002", Name: "Dup", Password: testPassword})
	if !errors.Is(err, service.ErrConflict) {
		t.Errorf("duplicate email err = %v, want ErrConflict", err)
	}
	_, err = h.users.Create(ctx, member, service.CreateUserInput{Email: "x@example.com", EmpID: "E-9", Name: "X", Password: testPassword})
	if !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("member create err = %v, want ErrAccessDenied", err)
	}

	var denied *service.AccessDeniedError
	err = h.users.Delete(ctx, admin, otherAdmin.ID)
	if !errors.As(err, &denied) || denied.Reason != policy.ReasonProtectedAdmin {
		t.Errorf("delete admin err = %v, want protected admin", err)
	}
	err = h.users.SetActive(ctx, admin, otherAdmin.ID, false)
	if !errors.As(err, &denied) || denied.Reason != policy.ReasonProtectedAdmin {
		t.Errorf("lock admin err = %v, want protected admin", err)
	}

	if _, err := h.users.Usage(ctx, member, member.ID); err != nil {
		t.Errorf("own usage: %v", err)
	}
	if _, err := h.users.Usage(ctx, member, admin.ID); !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("other usage err = %v, want ErrAccessDenied", err)
	}

	f := h.folder(t, member, "Mine", false)
	res := h.mustUpload(t, member, &f.ID, "a.txt", 100)
	h.mustUpload(t, member, &f.ID, "a.txt", 120)
	h.mustUpload(t, admin, &f.ID, "admin.txt", 10)
	if h.blobs.Len() != 3 {
		t.Fatalf("blobs = %d, want 3", h.blobs.Len())
	}

	if err := h.users.Delete(ctx, admin, member.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if h.blobs.Len() != 1 {
		t.Errorf("blobs after delete = %d, want 1", h.blobs.Len())
	}
	if _, err := testutil.FileRow(t, h.store, res.File.ID); err == nil {
		t.Error("deleted user's file row remains")
	}
	moved, err := h.store.Folders.ByID(ctx, f.ID)
	if err != nil || moved.OwnerID != admin.ID {
		t.Errorf("folder after owner deletion = %+v, %v", moved, err)
	}
}

func TestReconcileRepairsDrift(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, model.RoleAdmin, 1<<20)
	member := h.user(t, model.RoleMember, 1<<20)
	h.mustUpload(t, member, nil, "a.txt", 400)

	err := h.store.Users.SetStorageUsed(ctx, member.ID, 900, h.clock.Now())
	if err != nil {
		t.Fatalf("corrupt counter: %v", err)
	}
	if _, err := h.users.Reconcile(ctx, member, member.ID); !errors.Is(err, service.ErrAccessDenied) {
		t.Errorf("member reconcile err = %v, want ErrAccessDenied", err)
	}
	drift, err := h.users.Reconcile(ctx, admin, member.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if drift != 500 {
		t.Errorf("drift = %d, want 500", drift)
	}
	h.assertLedger(t, member)
}

func TestSecurityReportLevels(t *testing.T) {
	tests := []struct {
		deletes int
		want    policy.ThreatLevel
	}{
		{0, policy.ThreatLow},
		{10, policy.ThreatLow},
		{11, policy.ThreatMedium},
		{21, policy.ThreatHigh},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			for i := range tt.deletes {
				err := h.store.Activity.Create(ctx, &model.ActivityLog{
					ID:        "evt-" + string(rune('a'+i)),
					Action:    model.ActionDelete,
					Severity:  model.SeverityInfo,
					CreatedAt: h.clock.Now().Add(-time.Hour),
				})
				if err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			// Outside the window.
			err := h.store.Activity.Create(ctx, &model.ActivityLog{
				ID:        "old",
				Action:    model.ActionDelete,
				Severity:  model.SeverityWarning,
				CreatedAt: h.clock.Now().Add(-25 * time.Hour),
			})
			if err != nil {
				t.Fatalf("seed old: %v", err)
			}

			report, err := h.security.Report(ctx)
			if err != nil {
				t.Fatalf("report: %v", err)
			}
			if report.Deletes != tt.deletes || report.Level != tt.want {
				t.Errorf("report = %d deletes, level %s; want %d, %s", report.Deletes, report.Level, tt.deletes, tt.want)
			}
			if len(report.RecentAlert) != 1 {
				t.Errorf("recent alerts = %d, want 1", len(report.RecentAlert))
			}
		})
	}
}
