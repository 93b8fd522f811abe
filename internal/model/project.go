package model

import (
	"time"
)

const (
	ProjectStatusActive   = "active"
	ProjectStatusExpired  = "expired"
	ProjectStatusArchived = "archived"
)

// ProjectFolderPrefix names the folder created alongside every project.
const ProjectFolderPrefix = "[Project] "

type Project struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	FolderID    string    `db:"folder_id" json:"folder_id"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Loaded separately from project_members
	Members []string `db:"-" json:"members"`
}

// IsExpiredAt reports whether the project no longer accepts writes:
// swept to expired, archived, or simply past its expiry instant.
func (p *Project) IsExpiredAt(now time.Time) bool {
	if p.Status != ProjectStatusActive {
		return true
	}
	return now.After(p.ExpiresAt)
}

func (p *Project) HasMember(userID string) bool {
	for _, id := range p.Members {
		if id == userID {
			return true
		}
	}
	return false
}
