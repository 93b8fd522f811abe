package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
	"github.com/templui/vaultgate/internal/validation"
)

type FolderService struct {
	store    *repository.Store
	files    *FileService
	access   *Access
	notifier activity.Notifier
	clock    Clock
}

func NewFolderService(store *repository.Store, files *FileService, access *Access, notifier activity.Notifier, clock Clock) *FolderService {
	return &FolderService{
		store:    store,
		files:    files,
		access:   access,
		notifier: notifier,
		clock:    clock,
	}
}

type CreateFolderInput struct {
	Name     string
	ParentID *string
	Private  bool
}

// Create adds a folder owned by the principal. A subfolder joins its
// parent's project, and a private parent makes the child private too.
func (s *FolderService) Create(ctx context.Context, principal *model.User, in CreateFolderInput) (*model.Folder, error) {
	name := strings.TrimSpace(in.Name)
	err := validation.ValidateFolderName(name)
	if err != nil {
		return nil, invalid("%s", err)
	}
	if strings.HasPrefix(name, model.ProjectFolderPrefix) {
		return nil, invalid("folder names starting with %q are reserved for projects", model.ProjectFolderPrefix)
	}

	now := s.clock.Now()
	folder := &model.Folder{
		ID:        uuid.New().String(),
		OwnerID:   principal.ID,
		ParentID:  in.ParentID,
		Name:      name,
		IsPrivate: in.Private,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.ParentID != nil {
		parent, err := s.authorized(ctx, principal, *in.ParentID, policy.OpWrite)
		if err != nil {
			return nil, err
		}
		folder.ProjectID = parent.ProjectID
		folder.IsPrivate = folder.IsPrivate || parent.IsPrivate
	}

	_, err = s.store.Folders.ByName(ctx, principal.ID, in.ParentID, name)
	if err == nil {
		return nil, fmt.Errorf("%w: folder %q already exists", ErrConflict, name)
	}
	if !errors.Is(err, repository.ErrFolderNotFound) {
		return nil, fmt.Errorf("failed to check folder name: %w", err)
	}

	err = s.store.Folders.Create(ctx, folder)
	if errors.Is(err, repository.ErrDuplicateFolder) {
		return nil, fmt.Errorf("%w: folder %q already exists", ErrConflict, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     model.ActionFolderCreate,
		TargetType: model.TargetFolder,
		TargetID:   folder.ID,
		TargetName: folder.Name,
		Severity:   model.SeverityInfo,
		At:         now,
	})
	return folder, nil
}

// List returns every folder the principal can read.
func (s *FolderService) List(ctx context.Context, principal *model.User) ([]*model.Folder, error) {
	var folders []*model.Folder
	var err error
	if principal.IsAdmin() {
		folders, err = s.store.Folders.All(ctx)
	} else {
		folders, err = s.store.Folders.Candidates(ctx, principal.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	visible := folders[:0]
	for _, f := range folders {
		res, err := s.access.FolderResource(ctx, principal, f)
		if err != nil {
			return nil, err
		}
		if Visible(principal, res) {
			visible = append(visible, f)
		}
	}
	return visible, nil
}

// Get returns a folder the principal may read
func (s *FolderService) Get(ctx context.Context, principal *model.User, id string) (*model.Folder, error) {
	return s.authorized(ctx, principal, id, policy.OpRead)
}

// Files lists the live files in a folder that the principal can read.
func (s *FolderService) Files(ctx context.Context, principal *model.User, id string) ([]*model.File, error) {
	folder, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	files, err := s.store.Files.ByFolder(ctx, folder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	visible := files[:0]
	for _, f := range files {
		res, err := s.access.FileResource(ctx, principal, f)
		if err != nil {
			return nil, err
		}
		if Visible(principal, res) {
			visible = append(visible, f)
		}
	}
	return visible, nil
}

// Delete removes an empty-of-subfolders folder. Its live files are
// soft-deleted and each owner gets the bytes back, in the same
// transaction. Project folders go away with the project, not here.
func (s *FolderService) Delete(ctx context.Context, principal *model.User, id string) (int, error) {
	folder, err := s.authorized(ctx, principal, id, policy.OpDelete)
	if err != nil {
		return 0, err
	}

	if folder.ProjectID != nil {
		project, err := s.store.Projects.ByID(ctx, *folder.ProjectID)
		if err == nil && project.FolderID == folder.ID {
			return 0, fmt.Errorf("%w: archive the project instead of deleting its folder", ErrConflict)
		}
	}

	children, err := s.store.Folders.CountChildren(ctx, folder.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count subfolders: %w", err)
	}
	if children > 0 {
		return 0, fmt.Errorf("%w: folder has %d subfolders", ErrConflict, children)
	}

	var removed int
	err = s.store.Tx(ctx, func(tx *repository.Store) error {
		files, err := tx.Files.ByFolder(ctx, folder.ID)
		if err != nil {
			return err
		}
		for _, f := range files {
			deleted, err := s.files.softDeleteTx(ctx, tx, f.ID)
			if err != nil {
				return err
			}
			if deleted != nil {
				removed++
			}
		}
		return tx.Folders.Delete(ctx, folder.ID)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete folder: %w", err)
	}

	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     model.ActionFolderDelete,
		TargetType: model.TargetFolder,
		TargetID:   folder.ID,
		TargetName: folder.Name,
		Severity:   model.SeverityInfo,
		Details:    map[string]any{"files_deleted": removed},
		At:         s.clock.Now(),
	})
	return removed, nil
}

func (s *FolderService) authorized(ctx context.Context, principal *model.User, id string, op policy.Operation) (*model.Folder, error) {
	folder, err := s.store.Folders.ByID(ctx, id)
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
	err = s.access.Check(ctx, principal, res, op)
	if err != nil {
		return nil, err
	}
	return folder, nil
}
