// Package export streams selected rendered artifacts as a compressed zip
// archive.
//
// The engine is read-only: it loads the catalog, filters images by folder and
// tag selection, and copies matching artifacts from the blob store straight
// into a streaming zip writer over the caller's io.Writer. Nothing beyond one
// copy window is buffered, so backpressure from the consumer propagates to
// the file reads.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"archive/zip"

	"github.com/klauspost/compress/flate"

	"gifshelf/internal/blobstore"
	"gifshelf/internal/catalog"
	"gifshelf/internal/logging"
	"gifshelf/internal/pipeline"
)

// ErrEmptyExport is returned before any byte is written when the selection
// matches no exportable image, so callers can send a clean error instead of
// an empty archive.
var ErrEmptyExport = errors.New("export selection matched nothing")

// Selection chooses which images to export. All overrides the folder and tag
// sets; otherwise an image matches when its folder is in FolderIDs or any of
// its tags is in Tags.
type Selection struct {
	FolderIDs []string `json:"folderIds"`
	Tags      []string `json:"tags"`
	All       bool     `json:"includeAll"`
}

// Service reads the catalog and blob store to produce export archives.
type Service struct {
	store  *catalog.Store
	blobs  *blobstore.Store
	logger *slog.Logger
}

// NewService constructs an export service.
func NewService(store *catalog.Store, blobs *blobstore.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logging.WithComponent(logger, "export"),
	}
}

type entry struct {
	name     string
	blobName string
}

// Export streams a zip archive of every selected artifact to w. Only images
// with a rendered artifact are eligible; images whose artifact file is
// missing from the blob store are skipped silently. Entry name collisions are
// not de-duplicated: the archive simply contains both entries, last one
// winning in most extractors.
func (s *Service) Export(ctx context.Context, sel Selection, w io.Writer) error {
	cat, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	entries := s.collect(cat, sel)
	if len(entries) == 0 {
		return ErrEmptyExport
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	now := time.Now()
	for _, item := range entries {
		if err := s.writeEntry(zw, item, now); err != nil {
			_ = zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	s.logger.Info("export archive streamed", logging.Int("entries", len(entries)))
	return nil
}

func (s *Service) collect(cat *catalog.Catalog, sel Selection) []entry {
	folderSet := make(map[string]struct{}, len(sel.FolderIDs))
	for _, id := range sel.FolderIDs {
		folderSet[id] = struct{}{}
	}
	tagSet := make(map[string]struct{})
	for _, tag := range pipeline.NormalizeTags(sel.Tags) {
		tagSet[tag] = struct{}{}
	}

	var entries []entry
	for _, image := range cat.Images {
		if !image.HasArtifact() {
			continue
		}
		if !sel.All && !matches(image, folderSet, tagSet) {
			continue
		}
		if !s.blobs.Exists(*image.GIFFile) {
			s.logger.Warn("artifact missing on disk, skipping",
				logging.String("image_id", image.ID),
				logging.String("artifact", *image.GIFFile))
			continue
		}
		entries = append(entries, entry{
			name:     entryName(image),
			blobName: *image.GIFFile,
		})
	}
	return entries
}

func matches(image catalog.Image, folders, tags map[string]struct{}) bool {
	if image.FolderID != nil {
		if _, ok := folders[*image.FolderID]; ok {
			return true
		}
	}
	for _, tag := range image.Tags {
		if _, ok := tags[tag]; ok {
			return true
		}
	}
	return false
}

func (s *Service) writeEntry(zw *zip.Writer, item entry, modified time.Time) error {
	header := &zip.FileHeader{
		Name:     item.name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", item.name, err)
	}

	src, _, err := s.blobs.Open(item.blobName)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", item.blobName, err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("stream artifact %s: %w", item.blobName, err)
	}
	return nil
}

var unsafeEntryChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// entryName builds the archive entry name: sanitized display name plus .gif,
// falling back to the stored artifact filename when no display name exists.
func entryName(image catalog.Image) string {
	name := image.GIFFilename()
	if image.DisplayName != nil && *image.DisplayName != "" {
		name = *image.DisplayName + ".gif"
	}
	return unsafeEntryChars.ReplaceAllString(name, "_")
}

// ArchiveFilename returns the suggested download filename for an export
// started now.
func ArchiveFilename() string {
	return fmt.Sprintf("gifs_export_%d.zip", time.Now().UnixMilli())
}
