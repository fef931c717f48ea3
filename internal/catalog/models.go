package catalog

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Image is a catalog record for one uploaded original and its optional
// rendered artifact. Nullable references use pointers so the unset state is
// explicit everywhere it is read.
type Image struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	DisplayName  *string   `json:"name"`
	Tags         []string  `json:"tags"`
	FolderID     *string   `json:"folderId"`
	CreatedAt    time.Time `json:"createdAt"`
	GIFFile      *string   `json:"gifFile"`
}

// Folder groups images. Names are free text; duplicates are permitted.
type Folder struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

// Catalog is the aggregate of all image and folder records. It is always
// loaded and saved whole; mutation happens in memory between the two.
type Catalog struct {
	Images  []Image
	Folders []Folder
}

// Name returns the display name with a fallback to the original upload name.
func (i Image) Name() string {
	if i.DisplayName != nil && strings.TrimSpace(*i.DisplayName) != "" {
		return *i.DisplayName
	}
	return i.OriginalName
}

// HasArtifact reports whether rendering completed for this image. Presence of
// the artifact reference is the sole signal of "rendering complete".
func (i Image) HasArtifact() bool {
	return i.GIFFile != nil && *i.GIFFile != ""
}

// GIFFilename derives the artifact filename from the stored original
// filename: strip the extension, append the renderer's fixed suffix. The
// pipeline locates artifacts by recomputing this name, not via a path index.
func (i Image) GIFFilename() string {
	base := strings.TrimSuffix(i.Filename, filepath.Ext(i.Filename))
	return base + "_1px_scroll.gif"
}

// FindImage returns a pointer into the catalog's image slice, or nil.
func (c *Catalog) FindImage(id string) *Image {
	for idx := range c.Images {
		if c.Images[idx].ID == id {
			return &c.Images[idx]
		}
	}
	return nil
}

// FindFolder returns a pointer into the catalog's folder slice, or nil.
func (c *Catalog) FindFolder(id string) *Folder {
	for idx := range c.Folders {
		if c.Folders[idx].ID == id {
			return &c.Folders[idx]
		}
	}
	return nil
}

// RemoveImage deletes the record with the given ID, reporting whether it existed.
func (c *Catalog) RemoveImage(id string) bool {
	for idx := range c.Images {
		if c.Images[idx].ID == id {
			c.Images = append(c.Images[:idx], c.Images[idx+1:]...)
			return true
		}
	}
	return false
}

// DetachFolder nulls the folder reference on every image pointing at the
// folder and then removes the folder record itself. Both phases happen on the
// in-memory catalog so a single save persists them as one transition.
func (c *Catalog) DetachFolder(id string) bool {
	for idx := range c.Images {
		if c.Images[idx].FolderID != nil && *c.Images[idx].FolderID == id {
			c.Images[idx].FolderID = nil
		}
	}
	for idx := range c.Folders {
		if c.Folders[idx].ID == id {
			c.Folders = append(c.Folders[:idx], c.Folders[idx+1:]...)
			return true
		}
	}
	return false
}

// SortedNewestFirst returns a copy of the images ordered by creation time
// descending, the order the catalog read API presents.
func (c *Catalog) SortedNewestFirst() []Image {
	images := make([]Image, len(c.Images))
	copy(images, c.Images)
	sort.SliceStable(images, func(a, b int) bool {
		return images[a].CreatedAt.After(images[b].CreatedAt)
	})
	return images
}
