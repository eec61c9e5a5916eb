package epub

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// ExtractResources writes images of the book under dir keeping their paths
// relative to the book root. Files which do not look like images are skipped.
// Returns number of extracted files.
func (b *Book) ExtractResources(dir string) (int, error) {
	var count int
	for _, item := range b.Manifest {
		if !item.IsImage() {
			continue
		}
		data, err := b.container.ReadFile(item.Path)
		if err != nil {
			b.log.Warn("Manifest image is missing", zap.String("path", item.Path), zap.Error(err))
			continue
		}
		if !filetype.IsImage(data) && item.MediaType != "image/svg+xml" {
			b.log.Warn("Manifest item is not an image, skipping",
				zap.String("path", item.Path), zap.String("media-type", item.MediaType))
			continue
		}

		target := filepath.Join(dir, filepath.FromSlash(item.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return count, fmt.Errorf("unable to create resource directory: %w", err)
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return count, fmt.Errorf("unable to write resource: %w", err)
		}
		count++
	}
	b.log.Debug("Resources extracted", zap.String("dir", dir), zap.Int("count", count))
	return count, nil
}

// ExtractCover writes cover image into dir naming it after the book and the
// detected image type. Returns resulting file name or empty string when book
// has no usable cover.
func (b *Book) ExtractCover(dir string) (string, error) {
	if len(b.Cover) == 0 {
		return "", nil
	}
	data, err := b.container.ReadFile(b.Cover)
	if err != nil {
		return "", err
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || len(kind.Extension) == 0 {
		b.log.Warn("Unable to detect cover image type", zap.String("path", b.Cover))
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("unable to create cover directory: %w", err)
	}
	target := filepath.Join(dir, b.ID+"."+kind.Extension)
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("unable to write cover: %w", err)
	}
	return target, nil
}
