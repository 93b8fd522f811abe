package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

const (
	ActionLogin          = "login"
	ActionLoginLocked    = "login_locked"
	ActionPasswordChange = "password_change"
	ActionUpload         = "upload"
	ActionVersionUpload  = "version_upload"
	ActionDownload       = "download"
	ActionDelete         = "delete"
	ActionAccessDenied   = "access_denied"
	ActionFolderCreate   = "folder_create"
	ActionFolderDelete   = "folder_delete"
	ActionProjectCreate  = "project_create"
	ActionProjectUpdate  = "project_update"
	ActionProjectArchive = "project_archive"
	ActionProjectExpire  = "project_expire"
	ActionFileDestruct   = "file_self_destruct"
	ActionAccountLock    = "account_lock"
	ActionAccountUnlock  = "account_unlock"
	ActionUserCreate     = "user_create"
	ActionUserDelete     = "user_delete"
)

const (
	TargetFile    = "file"
	TargetFolder  = "folder"
	TargetProject = "project"
	TargetUser    = "user"
)

type ActivityLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id"` // nil for system (sweeper) events
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	TargetName string    `db:"target_name" json:"target_name"`
	Severity   string    `db:"severity" json:"severity"`
	Details    Details   `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Details is free-form event context stored as a JSON object.
type Details map[string]any

func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Details) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported details column type %T", src)
	}
	return json.Unmarshal(raw, (*map[string]any)(d))
}
