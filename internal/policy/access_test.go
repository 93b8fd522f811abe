package policy

import (
	"testing"

	"github.com/templui/vaultgate/internal/model"
)

var (
	admin  = &model.User{ID: "admin", Role: model.RoleAdmin}
	alice  = &model.User{ID: "alice", Role: model.RoleMember}
	bob    = &model.User{ID: "bob", Role: model.RoleMember}
	active = &ProjectScope{ID: "p1", Assigned: true}
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		principal *model.User
		res       Resource
		op        Operation
		want      Decision
		reason    Reason
	}{
		{
			name:      "admin reads private file",
			principal: admin,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Private: true},
			op:        OpRead,
			want:      Allow,
		},
		{
			name:      "admin writes into expired project",
			principal: admin,
			res:       Resource{Kind: KindFolder, OwnerID: "admin", Project: &ProjectScope{Expired: true}},
			op:        OpWrite,
			want:      Allow,
		},
		{
			name:      "owner deletes private file",
			principal: alice,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Private: true},
			op:        OpDelete,
			want:      Allow,
		},
		{
			name:      "non-owner reads private file",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Private: true},
			op:        OpRead,
			want:      Deny,
			reason:    ReasonPrivate,
		},
		{
			name:      "private beats project membership",
			principal: bob,
			res:       Resource{Kind: KindFolder, OwnerID: "alice", Private: true, Project: active},
			op:        OpRead,
			want:      Deny,
			reason:    ReasonPrivate,
		},
		{
			name:      "assigned member reads active project file",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Project: active},
			op:        OpRead,
			want:      Allow,
		},
		{
			name:      "assigned member writes active project folder",
			principal: bob,
			res:       Resource{Kind: KindFolder, OwnerID: "admin", Project: active},
			op:        OpWrite,
			want:      Allow,
		},
		{
			name:      "unassigned member reads active project file",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Project: &ProjectScope{}},
			op:        OpRead,
			want:      Deny,
			reason:    ReasonNotAssigned,
		},
		{
			name:      "assigned member writes expired project",
			principal: bob,
			res:       Resource{Kind: KindFolder, OwnerID: "admin", Project: &ProjectScope{Expired: true, Assigned: true}},
			op:        OpWrite,
			want:      Deny,
			reason:    ReasonProjectExpired,
		},
		{
			name:      "assigned member still reads expired project",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Project: &ProjectScope{Expired: true, Assigned: true}},
			op:        OpRead,
			want:      Allow,
		},
		{
			name:      "unassigned member reads expired project",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Project: &ProjectScope{Expired: true}},
			op:        OpRead,
			want:      Deny,
			reason:    ReasonNotAssigned,
		},
		{
			name:      "assigned member deletes someone else's project file",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice", Project: active},
			op:        OpDelete,
			want:      Deny,
			reason:    ReasonNotOwner,
		},
		{
			name:      "shared space read",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice"},
			op:        OpRead,
			want:      Allow,
		},
		{
			name:      "shared space delete by non-owner",
			principal: bob,
			res:       Resource{Kind: KindFile, OwnerID: "alice"},
			op:        OpDelete,
			want:      Deny,
			reason:    ReasonNotOwner,
		},
		{
			name:      "nil principal",
			principal: nil,
			res:       Resource{Kind: KindFile, OwnerID: "alice"},
			op:        OpRead,
			want:      Deny,
			reason:    ReasonAccessDenied,
		},
		{
			name:      "admin locks member",
			principal: admin,
			res:       Resource{Kind: KindPrincipal, ID: "alice", OwnerID: "alice", TargetRole: model.RoleMember},
			op:        OpManage,
			want:      Allow,
		},
		{
			name:      "admin locks another admin",
			principal: admin,
			res:       Resource{Kind: KindPrincipal, ID: "root", OwnerID: "root", TargetRole: model.RoleAdmin},
			op:        OpManage,
			want:      Deny,
			reason:    ReasonProtectedAdmin,
		},
		{
			name:      "admin deletes own admin account",
			principal: admin,
			res:       Resource{Kind: KindPrincipal, ID: "admin", OwnerID: "admin", TargetRole: model.RoleAdmin},
			op:        OpDelete,
			want:      Deny,
			reason:    ReasonProtectedAdmin,
		},
		{
			name:      "admin reads admin account",
			principal: admin,
			res:       Resource{Kind: KindPrincipal, ID: "root", TargetRole: model.RoleAdmin},
			op:        OpRead,
			want:      Allow,
		},
		{
			name:      "member manages member",
			principal: bob,
			res:       Resource{Kind: KindPrincipal, ID: "alice", OwnerID: "alice", TargetRole: model.RoleMember},
			op:        OpManage,
			want:      Deny,
			reason:    ReasonAdminRequired,
		},
		{
			name:      "member reads own account",
			principal: bob,
			res:       Resource{Kind: KindPrincipal, ID: "bob", OwnerID: "bob", TargetRole: model.RoleMember},
			op:        OpRead,
			want:      Allow,
		},
		{
			name:      "member unlocks self",
			principal: bob,
			res:       Resource{Kind: KindPrincipal, ID: "bob", OwnerID: "bob", TargetRole: model.RoleMember},
			op:        OpManage,
			want:      Deny,
			reason:    ReasonAdminRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.principal, tt.res, tt.op)
			if got.Decision != tt.want {
				t.Fatalf("Decide() = %v (%v), want %v", got.Decision, got.Reason, tt.want)
			}
			if got.Reason != tt.reason {
				t.Errorf("Decide() reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

// Owners are allowed on their own resources whatever the privacy flag or
// project state.
func TestDecideOwnerAlwaysAllowed(t *testing.T) {
	scopes := []*ProjectScope{
		nil,
		{Assigned: false},
		{Assigned: true},
		{Expired: true},
		{Expired: true, Assigned: true},
	}
	ops := []Operation{OpRead, OpWrite, OpDelete}
	kinds := []Kind{KindFile, KindFolder, KindProject}

	for _, kind := range kinds {
		for _, private := range []bool{false, true} {
			for _, scope := range scopes {
				for _, op := range ops {
					res := Resource{Kind: kind, OwnerID: alice.ID, Private: private, Project: scope}
					if got := Decide(alice, res, op); !got.Allowed() {
						t.Errorf("owner %v %v private=%v scope=%+v: got %v (%v)", op, kind, private, scope, got.Decision, got.Reason)
					}
				}
			}
		}
	}
}

func TestReasonStrings(t *testing.T) {
	want := map[Reason]string{
		ReasonProtectedAdmin: "protected-admin-account",
		ReasonPrivate:        "private",
		ReasonProjectExpired: "project-expired",
		ReasonNotAssigned:    "not-assigned",
		ReasonAccessDenied:   "access-denied",
	}
	for r, s := range want {
		if r.String() != s {
			t.Errorf("%d.String() = %q, want %q", r, r.String(), s)
		}
	}
}
