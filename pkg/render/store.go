package render

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/menta2k/meme-maker/pkg/processing"
	"github.com/menta2k/meme-maker/pkg/safety"
	"github.com/menta2k/meme-maker/pkg/types"
)

// Meme is one persisted artifact.
type Meme struct {
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Store persists the captioned tiles of one request.
type Store interface {
	SaveMemes(requestID string, tiles []image.Image, captions []string) ([]Meme, error)
}

// DirStore writes artifacts into a directory.
type DirStore struct {
	Dir     string
	Format  string
	Quality int

	captioner *Captioner
	processor *processing.Processor
	logger    *slog.Logger
}

// NewDirStore creates a store writing format ("png", "jpg" or "webp") files to dir.
func NewDirStore(dir, format string, quality int, logger *slog.Logger) *DirStore {
	if format == "" {
		format = "png"
	}
	if quality <= 0 {
		quality = 90
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DirStore{
		Dir:       dir,
		Format:    format,
		Quality:   quality,
		captioner: NewCaptioner(),
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

// SaveMemes writes one captioned artifact per output slot. Missing tiles reuse
// the first tile; with no tiles at all text-only cards are written. A slot that
// fails to render or save is replaced by a default text card.
func (s *DirStore) SaveMemes(requestID string, tiles []image.Image, captions []string) ([]Meme, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	memes := make([]Meme, 0, types.CropCount)
	for i := 0; i < types.CropCount; i++ {
		caption := safety.DefaultCaption
		if i < len(captions) {
			caption = captions[i]
		}
		filename := fmt.Sprintf("%s_%d%s", requestID, i+1, processing.Extension(s.Format))
		path := filepath.Join(s.Dir, filename)
		seed := fmt.Sprintf("%s_%d", requestID, i)

		var final image.Image
		if len(tiles) == 0 {
			final = s.captioner.Card(caption, seed)
		} else {
			tile := tiles[0]
			if i < len(tiles) && tiles[i] != nil {
				tile = tiles[i]
			}
			final = s.captioner.Render(tile, caption)
		}

		if err := s.persist(final, path); err != nil {
			s.logger.Warn("failed to save meme, writing default card", "request_id", requestID, "slot", i+1, "error", err)
			caption = safety.DefaultCaption
			if err := s.persist(s.captioner.Card(caption, seed), path); err != nil {
				return memes, fmt.Errorf("failed to save meme %d: %w", i+1, err)
			}
		}
		memes = append(memes, Meme{Caption: caption, Filename: filename, Path: path})
	}
	return memes, nil
}

// persist writes img to a temporary file in the target directory and renames it into place.
func (s *DirStore) persist(img image.Image, path string) error {
	ext := processing.Extension(s.Format)
	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp"+ext)
	if err := s.processor.SaveImage(img, tmp, s.Format, s.Quality, false); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
