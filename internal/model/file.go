package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type File struct {
	ID             string     `db:"id" json:"id"`
	OwnerID        string     `db:"owner_id" json:"owner_id"`
	FolderID       *string    `db:"folder_id" json:"folder_id"`
	ProjectID      *string    `db:"project_id" json:"project_id"`
	OriginalName   string     `db:"original_name" json:"original_name"`
	MimeType       string     `db:"mime_type" json:"mime_type"`
	Extension      string     `db:"extension" json:"extension"`
	StoragePath    string     `db:"storage_path" json:"storage_path"` // blob of the current version
	Size           int64      `db:"size" json:"size"`                 // size of the current version
	Checksum       string     `db:"checksum" json:"checksum"`
	CurrentVersion int        `db:"current_version" json:"current_version"`
	IsPrivate      bool       `db:"is_private" json:"is_private"`
	IsDeleted      bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at"` // self-destruct instant
	Tags           Tags       `db:"tags" json:"tags"`
	DownloadCount  int64      `db:"download_count" json:"download_count"`
	LastAccessedAt *time.Time `db:"last_accessed_at" json:"last_accessed_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Tags is stored as a JSON array in a text column.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
	return json.Unmarshal(raw, (*[]string)(t))
}
