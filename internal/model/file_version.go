package model

import (
	"time"
)

// FileVersion rows are written once and never updated.
type FileVersion struct {
	ID            string    `db:"id" json:"id"`
	FileID        string    `db:"file_id" json:"file_id"`
	VersionNumber int       `db:"version_number" json:"version_number"`
	StoragePath   string    `db:"storage_path" json:"storage_path"`
	Size          int64     `db:"size" json:"size"`
	MimeType      string    `db:"mime_type" json:"mime_type"`
	Checksum      string    `db:"checksum" json:"checksum"`
	UploadedBy    string    `db:"uploaded_by" json:"uploaded_by"`
	Changelog     string    `db:"changelog" json:"changelog"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
