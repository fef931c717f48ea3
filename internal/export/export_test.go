package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"gifshelf/internal/blobstore"
	"gifshelf/internal/catalog"
	"gifshelf/internal/export"
	"gifshelf/internal/logging"
	"gifshelf/internal/testsupport"
)

type fixture struct {
	store *catalog.Store
	blobs *blobstore.Store
	svc   *export.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg.Paths.UploadsDir)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	return &fixture{
		store: store,
		blobs: blobs,
		svc:   export.NewService(store, blobs, logging.NewNop()),
	}
}

type seedOpts struct {
	displayName string
	folderID    *string
	tags        []string
	rendered    bool
	missingFile bool
}

func (f *fixture) seedImage(t *testing.T, id string, opts seedOpts) catalog.Image {
	t.Helper()

	image := catalog.Image{
		ID:           id,
		Filename:     id + ".png",
		OriginalName: id + ".png",
		Tags:         opts.tags,
		FolderID:     opts.folderID,
		CreatedAt:    time.Now().UTC(),
	}
	if opts.displayName != "" {
		name := opts.displayName
		image.DisplayName = &name
	}
	if opts.rendered {
		gif := image.GIFFilename()
		image.GIFFile = &gif
		if !opts.missingFile {
			if _, err := f.blobs.Write(gif, []byte("GIF89a"+id)); err != nil {
				t.Fatalf("write artifact blob: %v", err)
			}
		}
	}

	err := f.store.Update(context.Background(), func(cat *catalog.Catalog) error {
		cat.Images = append(cat.Images, image)
		return nil
	})
	if err != nil {
		t.Fatalf("seed image: %v", err)
	}
	return image
}

func (f *fixture) seedFolder(t *testing.T, id, name string) {
	t.Helper()
	err := f.store.Update(context.Background(), func(cat *catalog.Catalog) error {
		cat.Folders = append(cat.Folders, catalog.Folder{ID: id, Name: name})
		return nil
	})
	if err != nil {
		t.Fatalf("seed folder: %v", err)
	}
}

func entryNames(t *testing.T, data []byte) []string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, file := range zr.File {
		names = append(names, file.Name)
	}
	sort.Strings(names)
	return names
}

func TestExportByFolderSelectsRenderedMembers(t *testing.T) {
	f := newFixture(t)
	f.seedFolder(t, "F1", "Pets")
	folder := "F1"
	f.seedImage(t, "img-in", seedOpts{displayName: "cat.png", folderID: &folder, rendered: true})
	f.seedImage(t, "img-out", seedOpts{rendered: true})
	f.seedImage(t, "img-raw", seedOpts{folderID: &folder})

	var buf bytes.Buffer
	err := f.svc.Export(context.Background(), export.Selection{FolderIDs: []string{"F1"}}, &buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	names := entryNames(t, buf.Bytes())
	if len(names) != 1 || names[0] != "cat.png.gif" {
		t.Fatalf("entries = %v, want [cat.png.gif]", names)
	}
}

func TestExportMatchesFolderOrTag(t *testing.T) {
	f := newFixture(t)
	f.seedFolder(t, "F1", "Pets")
	folder := "F1"
	f.seedImage(t, "by-folder", seedOpts{folderID: &folder, rendered: true})
	f.seedImage(t, "by-tag", seedOpts{tags: []string{"FAVORITE"}, rendered: true})
	f.seedImage(t, "neither", seedOpts{rendered: true})

	var buf bytes.Buffer
	sel := export.Selection{FolderIDs: []string{"F1"}, Tags: []string{"favorite"}}
	if err := f.svc.Export(context.Background(), sel, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	names := entryNames(t, buf.Bytes())
	if len(names) != 2 {
		t.Fatalf("entries = %v, want two", names)
	}
}

func TestExportAllIgnoresFilters(t *testing.T) {
	f := newFixture(t)
	f.seedImage(t, "one", seedOpts{rendered: true})
	f.seedImage(t, "two", seedOpts{tags: []string{"X"}, rendered: true})
	f.seedImage(t, "unrendered", seedOpts{})

	var buf bytes.Buffer
	sel := export.Selection{All: true, FolderIDs: []string{"nonexistent"}}
	if err := f.svc.Export(context.Background(), sel, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	if names := entryNames(t, buf.Bytes()); len(names) != 2 {
		t.Fatalf("entries = %v, want the two rendered images", names)
	}
}

func TestExportEmptySelectionWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedImage(t, "unrendered", seedOpts{tags: []string{"PETS"}})

	var buf bytes.Buffer
	err := f.svc.Export(context.Background(), export.Selection{Tags: []string{"PETS"}}, &buf)
	if !errors.Is(err, export.ErrEmptyExport) {
		t.Fatalf("err = %v, want ErrEmptyExport", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes before reporting empty selection", buf.Len())
	}
}

func TestExportSkipsArtifactsMissingOnDisk(t *testing.T) {
	f := newFixture(t)
	f.seedImage(t, "present", seedOpts{tags: []string{"A"}, rendered: true})
	f.seedImage(t, "ghost", seedOpts{tags: []string{"A"}, rendered: true, missingFile: true})

	var buf bytes.Buffer
	if err := f.svc.Export(context.Background(), export.Selection{Tags: []string{"A"}}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	names := entryNames(t, buf.Bytes())
	if len(names) != 1 || !strings.HasPrefix(names[0], "present") {
		t.Fatalf("entries = %v, want only the present artifact", names)
	}
}

func TestExportEntryNameSanitized(t *testing.T) {
	f := newFixture(t)
	f.seedImage(t, "fancy", seedOpts{displayName: "My Cat (2024)!", tags: []string{"A"}, rendered: true})

	var buf bytes.Buffer
	if err := f.svc.Export(context.Background(), export.Selection{Tags: []string{"A"}}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	names := entryNames(t, buf.Bytes())
	if names[0] != "My_Cat__2024__.gif" {
		t.Fatalf("entry name = %q, want My_Cat__2024__.gif", names[0])
	}
}

func TestExportEntryNameFallsBackToArtifactFilename(t *testing.T) {
	f := newFixture(t)
	image := f.seedImage(t, "plain", seedOpts{tags: []string{"A"}, rendered: true})

	var buf bytes.Buffer
	if err := f.svc.Export(context.Background(), export.Selection{Tags: []string{"A"}}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	names := entryNames(t, buf.Bytes())
	if names[0] != image.GIFFilename() {
		t.Fatalf("entry name = %q, want %q", names[0], image.GIFFilename())
	}
}

func TestExportedEntryContentRoundTrips(t *testing.T) {
	f := newFixture(t)
	f.seedImage(t, "payload", seedOpts{tags: []string{"A"}, rendered: true})

	var buf bytes.Buffer
	if err := f.svc.Export(context.Background(), export.Selection{Tags: []string{"A"}}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if string(data) != "GIF89apayload" {
		t.Fatalf("entry content = %q", data)
	}
}

func TestArchiveFilenameShape(t *testing.T) {
	name := export.ArchiveFilename()
	if !strings.HasPrefix(name, "gifs_export_") || !strings.HasSuffix(name, ".zip") {
		t.Fatalf("archive filename = %q", name)
	}
}
