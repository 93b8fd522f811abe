// Package policy holds the pure authorization and threat rules. Nothing here
// touches storage or logs; callers report denials themselves.
package policy

import (
	"github.com/templui/vaultgate/internal/model"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Reason explains a Deny. The zero value accompanies Allow.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonProtectedAdmin
	ReasonAdminRequired
	ReasonPrivate
	ReasonProjectExpired
	ReasonNotAssigned
	ReasonNotOwner
	ReasonAccessDenied
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonProtectedAdmin:
		return "protected-admin-account"
	case ReasonAdminRequired:
		return "admin-required"
	case ReasonPrivate:
		return "private"
	case ReasonProjectExpired:
		return "project-expired"
	case ReasonNotAssigned:
		return "not-assigned"
	case ReasonNotOwner:
		return "not-owner"
	default:
		return "access-denied"
	}
}

type Operation int

const (
	OpRead Operation = iota
	OpWrite
	OpDelete
	// OpManage changes an account's status.
	OpManage
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	case OpManage:
		return "manage"
	default:
		return "unknown"
	}
}

// Mutates reports whether the operation changes state.
func (o Operation) Mutates() bool {
	return o != OpRead
}

type Kind int

const (
	KindFile Kind = iota
	KindFolder
	KindProject
	KindPrincipal
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return model.TargetFile
	case KindFolder:
		return model.TargetFolder
	case KindProject:
		return model.TargetProject
	case KindPrincipal:
		return model.TargetUser
	default:
		return "unknown"
	}
}

// ProjectScope is the project a resource belongs to, as seen by the
// requesting principal at the time of the check.
type ProjectScope struct {
	ID       string
	Expired  bool // swept, archived, or past its expiry instant
	Assigned bool // principal is a project member
}

// Resource is everything Decide needs to know about a target.
// For principal targets OwnerID is the account itself.
type Resource struct {
	Kind       Kind
	ID         string
	Name       string
	OwnerID    string
	Private    bool
	Project    *ProjectScope
	TargetRole string
}

type Result struct {
	Decision Decision
	Reason   Reason
}

func (r Result) Allowed() bool {
	return r.Decision == Allow
}

var allow = Result{Decision: Allow}

func deny(reason Reason) Result {
	return Result{Decision: Deny, Reason: reason}
}

// Decide evaluates, in order:
//  1. admin accounts cannot be managed or deleted by anyone; otherwise
//     admins may do anything
//  2. owners may do anything with their own resources
//  3. private resources are closed to everyone else
//  4. project resources: only owners delete; expired projects refuse
//     writes and admit reads from members; active projects admit members
//  5. shared personal space is open to read and write, but not delete
//
// Principal targets only pass rule 1, or rule 2 for reading oneself.
func Decide(principal *model.User, res Resource, op Operation) Result {
	if principal == nil {
		return deny(ReasonAccessDenied)
	}

	if res.Kind == KindPrincipal {
		return decidePrincipal(principal, res, op)
	}

	if principal.IsAdmin() {
		return allow
	}

	if res.OwnerID != "" && res.OwnerID == principal.ID {
		return allow
	}

	if res.Private {
		return deny(ReasonPrivate)
	}

	if op == OpDelete || op == OpManage {
		return deny(ReasonNotOwner)
	}

	if p := res.Project; p != nil {
		if p.Expired {
			if op.Mutates() {
				return deny(ReasonProjectExpired)
			}
			if p.Assigned {
				return allow
			}
			return deny(ReasonNotAssigned)
		}
		if p.Assigned {
			return allow
		}
		return deny(ReasonNotAssigned)
	}

	switch op {
	case OpRead, OpWrite:
		return allow
	}
	return deny(ReasonAccessDenied)
}

func decidePrincipal(principal *model.User, res Resource, op Operation) Result {
	if res.TargetRole == model.RoleAdmin && (op == OpManage || op == OpDelete) {
		return deny(ReasonProtectedAdmin)
	}
	if principal.IsAdmin() {
		return allow
	}
	if op == OpRead && res.ID == principal.ID {
		return allow
	}
	return deny(ReasonAdminRequired)
}
