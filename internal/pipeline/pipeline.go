package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"gifshelf/internal/blobstore"
	"gifshelf/internal/catalog"
	"gifshelf/internal/logging"
	"gifshelf/internal/renderer"
)

// Pipeline orchestrates the catalog store, blob store, and renderer for the
// image lifecycle: ingest, render, retire, plus folder and tag mutation.
type Pipeline struct {
	store    *catalog.Store
	blobs    *blobstore.Store
	renderer *renderer.Service
	logger   *slog.Logger
}

// New constructs a pipeline over the given collaborators.
func New(store *catalog.Store, blobs *blobstore.Store, svc *renderer.Service, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		blobs:    blobs,
		renderer: svc,
		logger:   logging.WithComponent(logger, "pipeline"),
	}
}

// UploadRequest carries one ingest operation's inputs.
type UploadRequest struct {
	Data         []byte
	OriginalName string
	DisplayName  string
	FolderID     *string
}

// Upload ingests an image: blob write first, catalog append second. A blob
// write failure leaves the catalog untouched. A catalog failure after the
// blob landed leaks an orphaned file; the catalog never references a file
// that was not written.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (*catalog.Image, error) {
	if len(req.Data) == 0 {
		return nil, Wrap(ErrUnsupportedMedia, "upload", req.OriginalName, errors.New("empty payload"))
	}
	if !blobstore.IsImageName(req.OriginalName) {
		return nil, Wrap(ErrUnsupportedMedia, "upload", req.OriginalName, nil)
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(req.OriginalName))
	filename := id + ext

	if _, err := p.blobs.Write(filename, req.Data); err != nil {
		return nil, err
	}

	image := catalog.Image{
		ID:           id,
		Filename:     filename,
		OriginalName: req.OriginalName,
		Tags:         nil,
		FolderID:     req.FolderID,
		CreatedAt:    time.Now().UTC(),
	}
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		image.DisplayName = &name
	}

	err := p.store.Update(ctx, func(cat *catalog.Catalog) error {
		if req.FolderID != nil && cat.FindFolder(*req.FolderID) == nil {
			return Wrap(ErrNotFound, "upload", "folder "+*req.FolderID, nil)
		}
		cat.Images = append(cat.Images, image)
		return nil
	})
	if err != nil {
		p.logger.Warn("upload blob orphaned by catalog failure",
			logging.String("filename", filename), logging.Error(err))
		return nil, err
	}

	p.logger.Info("image ingested",
		logging.String("image_id", id),
		logging.String("filename", filename))
	return &image, nil
}

// Delete retires an image. The original file is removed first: a missing file
// is tolerated (the record must stay deletable), any other filesystem error
// aborts the whole operation with the catalog unchanged. Artifact removal is
// best-effort.
func (p *Pipeline) Delete(ctx context.Context, imageID string) error {
	cat, err := p.store.Load(ctx)
	if err != nil {
		return err
	}
	image := cat.FindImage(imageID)
	if image == nil {
		return Wrap(ErrNotFound, "delete", imageID, nil)
	}

	if err := p.blobs.Remove(image.Filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("original file already missing, removing record anyway",
				logging.String("image_id", imageID),
				logging.String("filename", image.Filename))
		} else {
			return Wrap(ErrPartialCleanup, "delete", imageID, err)
		}
	}

	if image.HasArtifact() {
		if err := p.blobs.Remove(*image.GIFFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to remove rendered artifact",
				logging.String("image_id", imageID),
				logging.String("artifact", *image.GIFFile),
				logging.Error(err))
		}
	}

	err = p.store.Update(ctx, func(cat *catalog.Catalog) error {
		if !cat.RemoveImage(imageID) {
			return Wrap(ErrNotFound, "delete", imageID, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Info("image retired", logging.String("image_id", imageID))
	return nil
}

// CreateFolder appends a folder record. Duplicate names are permitted.
func (p *Pipeline) CreateFolder(ctx context.Context, name string, color *string) (*catalog.Folder, error) {
	folder := catalog.Folder{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(name),
		Color: color,
	}
	if folder.Name == "" {
		return nil, Wrap(ErrUnsupportedMedia, "create folder", "", errors.New("empty name"))
	}

	err := p.store.Update(ctx, func(cat *catalog.Catalog) error {
		cat.Folders = append(cat.Folders, folder)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("folder created", logging.String("folder_id", folder.ID))
	return &folder, nil
}

// DeleteFolder nulls every image reference to the folder and removes the
// folder record in one persisted transition, so no state with a dangling
// reference is ever observable.
func (p *Pipeline) DeleteFolder(ctx context.Context, folderID string) error {
	err := p.store.Update(ctx, func(cat *catalog.Catalog) error {
		if !cat.DetachFolder(folderID) {
			return Wrap(ErrNotFound, "delete folder", folderID, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Info("folder deleted", logging.String("folder_id", folderID))
	return nil
}

// UpdateTags replaces an image's tag set with the normalized form of tags.
func (p *Pipeline) UpdateTags(ctx context.Context, imageID string, tags []string) error {
	normalized := NormalizeTags(tags)
	return p.store.Update(ctx, func(cat *catalog.Catalog) error {
		image := cat.FindImage(imageID)
		if image == nil {
			return Wrap(ErrNotFound, "update tags", imageID, nil)
		}
		image.Tags = normalized
		return nil
	})
}

// MoveToFolder re-files an image. A nil folderID means "unfiled"; a non-nil
// target must reference an existing folder.
func (p *Pipeline) MoveToFolder(ctx context.Context, imageID string, folderID *string) error {
	return p.store.Update(ctx, func(cat *catalog.Catalog) error {
		image := cat.FindImage(imageID)
		if image == nil {
			return Wrap(ErrNotFound, "move", imageID, nil)
		}
		if folderID != nil && cat.FindFolder(*folderID) == nil {
			return Wrap(ErrNotFound, "move", "folder "+*folderID, nil)
		}
		image.FolderID = folderID
		return nil
	})
}

// Rename sets the image's display name; an empty name clears it back to the
// original upload name fallback.
func (p *Pipeline) Rename(ctx context.Context, imageID, name string) error {
	return p.store.Update(ctx, func(cat *catalog.Catalog) error {
		image := cat.FindImage(imageID)
		if image == nil {
			return Wrap(ErrNotFound, "rename", imageID, nil)
		}
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			image.DisplayName = nil
		} else {
			image.DisplayName = &trimmed
		}
		return nil
	})
}

// Snapshot returns the current catalog for read-only presentation.
func (p *Pipeline) Snapshot(ctx context.Context) (*catalog.Catalog, error) {
	return p.store.Load(ctx)
}
