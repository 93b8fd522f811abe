package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/repository"
)

// errVersionRace means another writer advanced the file first. Uploads to
// the same identity are serialized in-process, so this only fires across
// processes sharing the database.
var errVersionRace = errors.New("file version changed concurrently")

// Blob describes stored content that is about to become a version.
type Blob struct {
	Path       string
	Size       int64
	Checksum   string
	MimeType   string
	UploadedBy string
	Changelog  string
}

// VersionChain appends immutable versions and keeps the file's current
// pointer, size and checksum in step with the newest one.
type VersionChain struct {
	clock Clock
}

func NewVersionChain(clock Clock) *VersionChain {
	return &VersionChain{clock: clock}
}

// CreateInitial inserts file as version 1 of a new lineage.
func (c *VersionChain) CreateInitial(ctx context.Context, tx *repository.Store, file *model.File, blob Blob) (*model.FileVersion, error) {
	now := c.clock.Now()

	file.CurrentVersion = 1
	file.StoragePath = blob.Path
	file.Size = blob.Size
	file.Checksum = blob.Checksum
	file.MimeType = blob.MimeType
	file.CreatedAt = now
	file.UpdatedAt = now

	err := tx.Files.Create(ctx, file)
	if errors.Is(err, repository.ErrDuplicateFile) {
		return nil, errVersionRace
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	v := c.version(file.ID, 1, blob, now)
	err = tx.Versions.Create(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}
	return v, nil
}

// Append adds version current+1 and returns it with the size delta the
// ledger must absorb (new size minus old, possibly negative).
func (c *VersionChain) Append(ctx context.Context, tx *repository.Store, file *model.File, blob Blob) (*model.FileVersion, int64, error) {
	now := c.clock.Now()
	v := c.version(file.ID, file.CurrentVersion+1, blob, now)

	ok, err := tx.Files.AdvanceVersion(ctx, file.ID, file.CurrentVersion, v)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to advance version: %w", err)
	}
	if !ok {
		return nil, 0, errVersionRace
	}

	err = tx.Versions.Create(ctx, v)
	if errors.Is(err, repository.ErrVersionConflict) {
		return nil, 0, errVersionRace
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create version: %w", err)
	}

	delta := blob.Size - file.Size
	file.CurrentVersion = v.VersionNumber
	file.StoragePath = v.StoragePath
	file.Size = v.Size
	file.Checksum = v.Checksum
	file.MimeType = v.MimeType
	file.UpdatedAt = now
	return v, delta, nil
}

func (c *VersionChain) version(fileID string, n int, blob Blob, at time.Time) *model.FileVersion {
	return &model.FileVersion{
		ID:            uuid.New().String(),
		FileID:        fileID,
		VersionNumber: n,
		StoragePath:   blob.Path,
		Size:          blob.Size,
		MimeType:      blob.MimeType,
		Checksum:      blob.Checksum,
		UploadedBy:    blob.UploadedBy,
		Changelog:     blob.Changelog,
		CreatedAt:     at,
	}
}
