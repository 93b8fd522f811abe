package model

import (
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	EmpID        string     `db:"emp_id" json:"emp_id"`
	Name         string     `db:"name" json:"name"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login"` // nil until first login
	StorageUsed  int64      `db:"storage_used" json:"storage_used"`
	Quota        int64      `db:"quota" json:"quota"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Remaining returns the bytes left in the quota, never negative.
func (u *User) Remaining() int64 {
	if u.StorageUsed >= u.Quota {
		return 0
	}
	return u.Quota - u.StorageUsed
}
