package blobstore_test

import (
	"errors"
	"io"
	"io/fs"
	"testing"

	"gifshelf/internal/blobstore"
)

func TestWriteOpenRemove(t *testing.T) {
	store, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := store.Write("a.png", []byte("pixels")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !store.Exists("a.png") {
		t.Fatal("expected blob to exist")
	}

	reader, size, err := store.Open("a.png")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != "pixels" || size != int64(len(data)) {
		t.Fatalf("unexpected blob contents: %q size=%d", data, size)
	}

	if err := store.Remove("a.png"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove("a.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist for missing blob, got %v", err)
	}
}

func TestCheckNameRejectsTraversal(t *testing.T) {
	for _, name := range []string{"", "..", "../etc/passwd", "a/b.png", `a\b.png`, "..hidden/../x"} {
		if err := blobstore.CheckName(name); !errors.Is(err, blobstore.ErrUnsafeName) {
			t.Fatalf("expected ErrUnsafeName for %q, got %v", name, err)
		}
	}
	if err := blobstore.CheckName("fine-name.png"); err != nil {
		t.Fatalf("expected safe name to pass, got %v", err)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.PNG":  "image/png",
		"a.jpeg": "image/jpeg",
		"a.jpg":  "image/jpeg",
		"a.gif":  "image/gif",
		"a.webp": "image/webp",
		"a.svg":  "image/svg+xml",
		"a.bin":  "application/octet-stream",
	}
	for name, want := range cases {
		if got := blobstore.ContentType(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestIsImageName(t *testing.T) {
	if !blobstore.IsImageName("photo.JPG") {
		t.Fatal("expected jpg to be accepted")
	}
	if blobstore.IsImageName("document.pdf") {
		t.Fatal("expected pdf to be rejected")
	}
}

func TestUsageReportsVolume(t *testing.T) {
	store, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	usage, err := store.Usage()
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if usage.TotalBytes == 0 {
		t.Fatal("expected non-zero volume size")
	}
}
