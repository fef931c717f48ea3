package pipeline

import (
	"context"
	"path/filepath"

	"gifshelf/internal/catalog"
	"gifshelf/internal/logging"
)

// Render invokes the external renderer for an image and, on success, records
// the derived artifact reference in the catalog. The catalog is only mutated
// after the process reports success, so an abandoned or failed render leaves
// it untouched. Re-rendering overwrites the artifact at the same path and the
// reference is unchanged, so the operation is idempotent in effect.
func (p *Pipeline) Render(ctx context.Context, imageID string) (*catalog.Image, error) {
	cat, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	image := cat.FindImage(imageID)
	if image == nil {
		return nil, Wrap(ErrNotFound, "render", imageID, nil)
	}

	inputPath, err := p.blobs.Path(image.Filename)
	if err != nil {
		return nil, err
	}

	outputPath, err := p.renderer.Render(ctx, inputPath)
	if err != nil {
		p.logger.Error("render process failed",
			logging.String("image_id", imageID), logging.Error(err))
		return nil, Wrap(ErrRenderFailed, "render", imageID, err)
	}

	// The renderer's zero exit is trusted: the artifact path is recorded
	// without a stat. A missing file despite success is a renderer contract
	// violation and surfaces as a retrieval-time 404.
	gifName := filepath.Base(outputPath)

	var updated catalog.Image
	err = p.store.Update(ctx, func(cat *catalog.Catalog) error {
		image := cat.FindImage(imageID)
		if image == nil {
			return Wrap(ErrNotFound, "render", imageID, nil)
		}
		image.GIFFile = &gifName
		updated = *image
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("artifact rendered",
		logging.String("image_id", imageID),
		logging.String("artifact", gifName))
	return &updated, nil
}
