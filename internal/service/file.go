package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/lifecycle"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
	"github.com/templui/vaultgate/internal/storage"
	"github.com/templui/vaultgate/internal/validation"
	"github.com/zeebo/blake3"
)

type FileService struct {
	store     *repository.Store
	blobs     storage.BlobStore
	ledger    *Ledger
	versions  *VersionChain
	access    *Access
	notifier  activity.Notifier
	mailer    Mailer
	clock     Clock
	locks     *keyedMutex
	maxUpload int64
}

func NewFileService(
	store *repository.Store,
	blobs storage.BlobStore,
	ledger *Ledger,
	versions *VersionChain,
	access *Access,
	notifier activity.Notifier,
	mailer Mailer,
	clock Clock,
	maxUpload int64,
) *FileService {
	return &FileService{
		store:     store,
		blobs:     blobs,
		ledger:    ledger,
		versions:  versions,
		access:    access,
		notifier:  notifier,
		mailer:    mailer,
		clock:     clock,
		locks:     newKeyedMutex(),
		maxUpload: maxUpload,
	}
}

type UploadInput struct {
	FolderID  *string
	Name      string
	MimeType  string // declared by the client, used when sniffing is inconclusive
	Content   io.ReadSeeker
	Private   bool // only for uploads outside any folder; folders decide otherwise
	ExpiresAt *time.Time
	Tags      []string
	Changelog string
}

type UploadResult struct {
	File    *model.File
	Version *model.FileVersion
	// Created is true when the upload started a new lineage.
	Created bool
}

// Upload stores content under (principal, folder, name). A live file with
// that identity gets a new version; otherwise a new file starts at
// version 1. The quota is charged the size difference, and nothing is
// kept if the charge does not fit.
func (s *FileService) Upload(ctx context.Context, principal *model.User, in UploadInput) (*UploadResult, error) {
	err := validation.ValidateFileName(in.Name)
	if err != nil {
		return nil, invalid("%s", err)
	}
	if in.Content == nil {
		return nil, invalid("file content is required")
	}
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(s.clock.Now()) {
			return nil, invalid("expires_at must be in the future")
		}
		at := in.ExpiresAt.UTC()
		in.ExpiresAt = &at
	}

	file := &model.File{
		ID:           uuid.New().String(),
		OwnerID:      principal.ID,
		FolderID:     in.FolderID,
		OriginalName: in.Name,
		Extension:    strings.ToLower(filepath.Ext(in.Name)),
		IsPrivate:    in.Private,
		ExpiresAt:    in.ExpiresAt,
		Tags:         in.Tags,
	}

	if in.FolderID != nil {
		folder, err := s.store.Folders.ByID(ctx, *in.FolderID)
		if errors.Is(err, repository.ErrFolderNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load folder: %w", err)
		}

		res, err := s.access.FolderResource(ctx, principal, folder)
		if err != nil {
			return nil, err
		}
		err = s.access.Check(ctx, principal, res, policy.OpWrite)
		if err != nil {
			return nil, err
		}

		file.IsPrivate = folder.IsPrivate
		file.ProjectID = folder.ProjectID
	}

	mimeType, err := validation.DetectMimeType(in.Content, in.Name, in.MimeType)
	if err != nil {
		return nil, invalid("%s", err)
	}
	size, checksum, err := digest(in.Content)
	if err != nil {
		return nil, err
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return nil, invalid("file too large: maximum size is %d MB", s.maxUpload>>20)
	}

	unlock := s.locks.Lock(identityKey(principal.ID, in.FolderID, in.Name))
	defer unlock()

	existing, err := s.store.Files.ByIdentity(ctx, principal.ID, in.FolderID, in.Name)
	if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	delta := size
	if existing != nil {
		delta = size - existing.Size
	}
	err = s.ledger.Check(ctx, principal.ID, delta)
	if err != nil {
		return nil, err
	}

	blob := Blob{
		Path:       fmt.Sprintf("files/%s/%s%s", principal.ID, uuid.New().String(), file.Extension),
		Size:       size,
		Checksum:   checksum,
		MimeType:   mimeType,
		UploadedBy: principal.ID,
		Changelog:  in.Changelog,
	}
	err = s.blobs.Save(ctx, blob.Path, in.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	result := &UploadResult{}
	err = s.store.Tx(ctx, func(tx *repository.Store) error {
		current, err := tx.Files.ByIdentity(ctx, principal.ID, in.FolderID, in.Name)
		if errors.Is(err, repository.ErrFileNotFound) {
			err = s.ledger.Reserve(ctx, tx, principal.ID, blob.Size)
			if err != nil {
				return err
			}
			v, err := s.versions.CreateInitial(ctx, tx, file, blob)
			if err != nil {
				return err
			}
			result.File, result.Version, result.Created = file, v, true
			return nil
		}
		if err != nil {
			return err
		}

		v, delta, err := s.versions.Append(ctx, tx, current, blob)
		if err != nil {
			return err
		}
		err = s.ledger.Reserve(ctx, tx, principal.ID, delta)
		if err != nil {
			return err
		}
		result.File, result.Version = current, v
		return nil
	})
	if err != nil {
		delErr := s.blobs.Delete(context.WithoutCancel(ctx), blob.Path)
		if delErr != nil {
			slog.Error("failed to delete orphaned blob", "path", blob.Path, "error", delErr)
		}
		if errors.Is(err, errVersionRace) {
			return nil, fmt.Errorf("%w: file was modified concurrently, retry the upload", ErrConflict)
		}
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	action := model.ActionUpload
	if !result.Created {
		action = model.ActionVersionUpload
	}
	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     action,
		TargetType: model.TargetFile,
		TargetID:   result.File.ID,
		TargetName: result.File.OriginalName,
		Severity:   model.SeverityInfo,
		Details:    map[string]any{"version": result.Version.VersionNumber, "size": size},
		At:         s.clock.Now(),
	})

	return result, nil
}

// Get returns a live file the principal may read.
func (s *FileService) Get(ctx context.Context, principal *model.User, id string) (*model.File, error) {
	return s.authorized(ctx, principal, id, policy.OpRead)
}

// Download opens the content of the given version, or the current one for
// version 0, and counts the access.
func (s *FileService) Download(ctx context.Context, principal *model.User, id string, version int) (*model.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, nil, err
	}

	path := file.StoragePath
	if version != 0 && version != file.CurrentVersion {
		versions, err := s.store.Versions.ByFile(ctx, file.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load versions: %w", err)
		}
		path = ""
		for _, v := range versions {
			if v.VersionNumber == version {
				path = v.StoragePath
			}
		}
		if path == "" {
			return nil, nil, ErrNotFound
		}
	}

	rc, err := s.blobs.Open(ctx, path)
	if errors.Is(err, storage.ErrBlobNotFound) {
		slog.Error("file content missing from storage", "file_id", file.ID, "path", path)
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	now := s.clock.Now()
	err = s.store.Files.MarkAccessed(ctx, file.ID, now)
	if err != nil {
		slog.Warn("failed to record file access", "file_id", file.ID, "error", err)
	}
	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     model.ActionDownload,
		TargetType: model.TargetFile,
		TargetID:   file.ID,
		TargetName: file.OriginalName,
		Severity:   model.SeverityInfo,
		At:         now,
	})

	return file, rc, nil
}

// Versions lists the file's history, oldest first.
func (s *FileService) Versions(ctx context.Context, principal *model.User, id string) ([]*model.FileVersion, error) {
	file, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.Versions.ByFile(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	return versions, nil
}

// Delete soft-deletes the file and returns its bytes to the owner's quota.
// Blobs are kept.
func (s *FileService) Delete(ctx context.Context, principal *model.User, id string) error {
	file, err := s.authorized(ctx, principal, id, policy.OpDelete)
	if err != nil {
		return err
	}

	deleted, err := s.softDelete(ctx, file)
	if err != nil {
		return err
	}
	if deleted == nil {
		return ErrNotFound
	}

	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     model.ActionDelete,
		TargetType: model.TargetFile,
		TargetID:   deleted.ID,
		TargetName: deleted.OriginalName,
		Severity:   model.SeverityInfo,
		Details:    map[string]any{"size": deleted.Size, "owner_id": deleted.OwnerID},
		At:         s.clock.Now(),
	})
	return nil
}

// List returns the principal's own live files.
func (s *FileService) List(ctx context.Context, principal *model.User) ([]*model.File, error) {
	files, err := s.store.Files.ByOwner(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// ListAll returns every live file. Admins only.
func (s *FileService) ListAll(ctx context.Context, principal *model.User) ([]*model.File, error) {
	if !principal.IsAdmin() {
		return nil, s.adminRequired(ctx, principal, model.TargetFile)
	}
	files, err := s.store.Files.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

type SearchInput struct {
	Text     string
	MimeType string
	FolderID string
	MinSize  *int64
	MaxSize  *int64
	From     *time.Time
	To       *time.Time
	Private  bool
	SortBy   string
	Asc      bool
}

// Search finds live files by name, tag, type, size and upload date.
//
// Members only search their own files; admins search every owner. Private
// mode is a strict switch: with Private set only private files match, and
// without it private files never appear.
func (s *FileService) Search(ctx context.Context, principal *model.User, in SearchInput) ([]*model.File, error) {
	if in.SortBy != "" && !repository.ValidFileSort(in.SortBy) {
		return nil, invalid("unknown sort %q", in.SortBy)
	}
	if in.MinSize != nil && *in.MinSize < 0 {
		return nil, invalid("min_size must not be negative")
	}
	if in.MinSize != nil && in.MaxSize != nil && *in.MinSize > *in.MaxSize {
		return nil, invalid("min_size must not exceed max_size")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return nil, invalid("from must not be after to")
	}

	q := repository.FileSearch{
		Private:  in.Private,
		Text:     strings.TrimSpace(in.Text),
		MimeType: strings.TrimSpace(in.MimeType),
		FolderID: in.FolderID,
		MinSize:  in.MinSize,
		MaxSize:  in.MaxSize,
		From:     utc(in.From),
		To:       utc(in.To),
		SortBy:   in.SortBy,
		Asc:      in.Asc,
	}
	if !principal.IsAdmin() {
		q.OwnerID = principal.ID
	}

	files, err := s.store.Files.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	if files == nil {
		files = []*model.File{}
	}
	return files, nil
}

func (s *FileService) adminRequired(ctx context.Context, principal *model.User, target string) error {
	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     model.ActionAccessDenied,
		TargetType: target,
		Severity:   model.SeverityWarning,
		Details:    map[string]any{"reason": policy.ReasonAdminRequired.String()},
		At:         s.clock.Now(),
	})
	return &AccessDeniedError{Reason: policy.ReasonAdminRequired}
}

func (s *FileService) authorized(ctx context.Context, principal *model.User, id string, op policy.Operation) (*model.File, error) {
	file, err := s.store.Files.ByID(ctx, id)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	res, err := s.access.FileResource(ctx, principal, file)
	if err != nil {
		return nil, err
	}
	err = s.access.Check(ctx, principal, res, op)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// softDelete flips is_deleted and releases the charged size in one
// transaction. It returns nil when the file was already gone.
func (s *FileService) softDelete(ctx context.Context, file *model.File) (*model.File, error) {
	unlock := s.locks.Lock(identityKey(file.OwnerID, file.FolderID, file.OriginalName))
	defer unlock()

	var deleted *model.File
	err := s.store.Tx(ctx, func(tx *repository.Store) error {
		var err error
		deleted, err = s.softDeleteTx(ctx, tx, file.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete file: %w", err)
	}
	return deleted, nil
}

// softDeleteTx releases the size the UPDATE itself saw, so a version
// appended by another writer before the flip is released in full.
func (s *FileService) softDeleteTx(ctx context.Context, tx *repository.Store, id string) (*model.File, error) {
	deleted, err := tx.Files.SoftDelete(ctx, id, s.clock.Now())
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = s.ledger.Release(ctx, tx, deleted.OwnerID, deleted.Size)
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// SelfDestructSource feeds the file self-destruct sweep.
func (s *FileService) SelfDestructSource() lifecycle.Source {
	return selfDestructSource{s}
}

type selfDestructSource struct {
	files *FileService
}

func (src selfDestructSource) Candidates(ctx context.Context) ([]lifecycle.Expiring, error) {
	files, err := src.files.store.Files.Expiring(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]lifecycle.Expiring, len(files))
	for i, f := range files {
		items[i] = lifecycle.FileExpiry{File: f}
	}
	return items, nil
}

// Apply soft-deletes the file exactly like an owner delete, then removes
// every version blob. Blob removal is best-effort: the quota charge is
// already gone and the row stays deleted either way.
func (src selfDestructSource) Apply(ctx context.Context, item lifecycle.Expiring, t lifecycle.Transition) (bool, error) {
	fe, ok := item.(lifecycle.FileExpiry)
	if !ok || t != lifecycle.Destruct {
		return false, fmt.Errorf("unexpected %s transition for %T", t, item)
	}
	s := src.files

	file, err := s.softDelete(ctx, fe.File)
	if err != nil || file == nil {
		return false, err
	}

	versions, err := s.store.Versions.ByFile(ctx, file.ID)
	if err != nil {
		slog.Warn("failed to list versions for blob removal", "file_id", file.ID, "error", err)
	}
	for _, v := range versions {
		err := s.blobs.Delete(ctx, v.StoragePath)
		if err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			slog.Warn("failed to remove expired blob", "file_id", file.ID, "path", v.StoragePath, "error", err)
		}
	}

	s.notifier.Record(ctx, activity.Event{
		Action:     model.ActionFileDestruct,
		TargetType: model.TargetFile,
		TargetID:   file.ID,
		TargetName: file.OriginalName,
		Severity:   model.SeverityInfo,
		Details:    map[string]any{"owner_id": file.OwnerID, "size": file.Size, "versions": len(versions)},
		At:         s.clock.Now(),
	})

	if s.mailer != nil {
		owner, err := s.store.Users.ByID(ctx, file.OwnerID)
		if err == nil {
			err = s.mailer.SendFileDestroyedEmail(ctx, owner.Email, owner.Name, file.OriginalName)
		}
		if err != nil {
			slog.Warn("failed to send self-destruct notice", "file_id", file.ID, "error", err)
		}
	}
	return true, nil
}

func digest(r io.ReadSeeker) (int64, string, error) {
	h := blake3.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read file: %w", err)
	}
	_, err = r.Seek(0, io.SeekStart)
	if err != nil {
		return 0, "", fmt.Errorf("failed to rewind file: %w", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func identityKey(ownerID string, folderID *string, name string) string {
	folder := ""
	if folderID != nil {
		folder = *folderID
	}
	return ownerID + "\x00" + folder + "\x00" + name
}
