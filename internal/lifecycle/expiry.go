// Package lifecycle drives the time-based state changes shared by projects,
// files and accounts: every resource that can lapse is wrapped as an
// Expiring and evaluated against one clock reading per sweep.
package lifecycle

import (
	"time"

	"github.com/templui/vaultgate/internal/model"
)

type Kind string

const (
	KindProjectExpiry     Kind = "project-expiry"
	KindFileSelfDestruct  Kind = "file-self-destruct"
	KindAccountInactivity Kind = "account-inactivity"
)

// Kinds lists every sweep in a stable order.
var Kinds = []Kind{KindProjectExpiry, KindFileSelfDestruct, KindAccountInactivity}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

type Transition int

const (
	NoOp Transition = iota
	Expire
	Destruct
	Lock
)

func (t Transition) String() string {
	switch t {
	case Expire:
		return "expire"
	case Destruct:
		return "destruct"
	case Lock:
		return "lock"
	default:
		return "noop"
	}
}

// InactivityWindow is how long a non-admin account may go without logging
// in before it is locked. Login and the sweep both use Inactive.
const InactivityWindow = 30 * 24 * time.Hour

// Inactive reports whether an account has passed the inactivity window.
// Accounts that never logged in are not considered inactive, and admins
// are exempt.
func Inactive(role string, lastLogin *time.Time, now time.Time) bool {
	if role == model.RoleAdmin || lastLogin == nil {
		return false
	}
	return now.Sub(*lastLogin) > InactivityWindow
}

// Expiring is a resource whose validity is bounded in time.
type Expiring interface {
	Kind() Kind
	ID() string
	Evaluate(now time.Time) Transition
}

type ProjectExpiry struct {
	Project *model.Project
}

func (p ProjectExpiry) Kind() Kind { return KindProjectExpiry }
func (p ProjectExpiry) ID() string { return p.Project.ID }

// Evaluate only moves active projects; expired and archived are terminal
// as far as the clock is concerned.
func (p ProjectExpiry) Evaluate(now time.Time) Transition {
	if p.Project.Status == model.ProjectStatusActive && now.After(p.Project.ExpiresAt) {
		return Expire
	}
	return NoOp
}

type FileExpiry struct {
	File *model.File
}

func (f FileExpiry) Kind() Kind { return KindFileSelfDestruct }
func (f FileExpiry) ID() string { return f.File.ID }

func (f FileExpiry) Evaluate(now time.Time) Transition {
	if f.File.IsDeleted || f.File.ExpiresAt == nil {
		return NoOp
	}
	if now.After(*f.File.ExpiresAt) {
		return Destruct
	}
	return NoOp
}

type AccountExpiry struct {
	User *model.User
}

func (a AccountExpiry) Kind() Kind { return KindAccountInactivity }
func (a AccountExpiry) ID() string { return a.User.ID }

func (a AccountExpiry) Evaluate(now time.Time) Transition {
	if !a.User.IsActive {
		return NoOp
	}
	if Inactive(a.User.Role, a.User.LastLogin, now) {
		return Lock
	}
	return NoOp
}
