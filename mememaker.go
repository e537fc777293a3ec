// Package mememaker turns a photo into five captioned square memes.
//
// A vision model proposes crop boxes, an expression label and captions.
// Everything it returns is parsed leniently, validated, retried once when
// malformed, and checked against a caption safety policy. When the model is
// unavailable or its answer cannot be trusted, heuristic crops and static
// caption pools take over, so a request always yields five results.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		mememaker "github.com/menta2k/meme-maker"
//		"github.com/menta2k/meme-maker/pkg/openrouter"
//	)
//
//	func main() {
//		mm := mememaker.New(mememaker.Options{
//			Generator: openrouter.New(openrouter.Options{APIKey: "sk-..."}),
//			OutputDir: "generated",
//		})
//
//		res, err := mm.GenerateFile(context.Background(), "baby.jpg", "make it silly")
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, m := range res.Memes {
//			fmt.Println(m.Caption, m.Path)
//		}
//	}
//
// The package consists of these components:
//
//  1. Cropper (pkg/cropper, pkg/vision): heuristic square crops and mouth close-ups
//  2. Selection (pkg/selection): ranks crops across several photos
//  3. Clients (pkg/openrouter, pkg/ollama): vision model backends
//  4. Resilience (pkg/normalize, pkg/schema, pkg/resilience): parse, validate and retry
//  5. Safety (pkg/safety): caption and prompt filtering with fallback pools
//  6. Render (pkg/render): caption overlay and persistence
package mememaker

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/cropper"
	"github.com/menta2k/meme-maker/pkg/pipeline"
	"github.com/menta2k/meme-maker/pkg/processing"
	"github.com/menta2k/meme-maker/pkg/render"
	"github.com/menta2k/meme-maker/pkg/types"
)

// Version of the meme maker library
const Version = "1.0.0"

// Options configures a MemeMaker.
type Options struct {
	// Generator is the vision backend. Nil runs in local fallback mode.
	Generator client.Generator
	// OutputDir receives rendered memes. Empty disables persistence.
	OutputDir string
	// Format is the artifact format: png (default), jpg or webp.
	Format  string
	Quality int

	Limits               processing.Limits
	AlignCaptionsToCrops bool
	Processor            *processing.Processor
	Logger               *slog.Logger
}

// MemeMaker wraps the generation pipeline
type MemeMaker struct {
	pipeline  *pipeline.Pipeline
	processor *processing.Processor
}

// New creates a MemeMaker.
func New(opts Options) *MemeMaker {
	processor := opts.Processor
	if processor == nil {
		processor = processing.NewProcessor()
	}

	var store render.Store
	if opts.OutputDir != "" {
		store = render.NewDirStore(opts.OutputDir, opts.Format, opts.Quality, opts.Logger)
	}

	return &MemeMaker{
		pipeline: pipeline.New(pipeline.Options{
			Generator:            opts.Generator,
			Store:                store,
			Processor:            processor,
			Cropper:              cropper.New(),
			Limits:               opts.Limits,
			AlignCaptionsToCrops: opts.AlignCaptionsToCrops,
			Logger:               opts.Logger,
		}),
		processor: processor,
	}
}

// Generate creates memes from image bytes. mimeType picks the encoding sent
// to the model and is sniffed when empty. A non-empty pref overrides the
// preference detected from userPrompt.
func (m *MemeMaker) Generate(ctx context.Context, image []byte, mimeType, userPrompt string, pref types.CropPreference) (*pipeline.Result, error) {
	return m.pipeline.Generate(ctx, pipeline.Input{
		Image:          image,
		MimeType:       mimeType,
		UserPrompt:     userPrompt,
		CropPreference: pref,
	})
}

// GenerateFile loads an image file and creates memes from it.
func (m *MemeMaker) GenerateFile(ctx context.Context, path, userPrompt string) (*pipeline.Result, error) {
	data, mime, err := m.processor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return m.Generate(ctx, data, mime, userPrompt, types.PreferDefault)
}

// GenerateFiles ranks crops across several image files and creates memes from the best five.
func (m *MemeMaker) GenerateFiles(ctx context.Context, paths []string, userPrompt string, pref types.CropPreference) (*pipeline.Result, error) {
	uploads := make([]pipeline.Upload, 0, len(paths))
	for _, path := range paths {
		data, mime, err := m.processor.LoadImage(path)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, pipeline.Upload{Name: filepath.Base(path), Data: data, MimeType: mime})
	}
	return m.pipeline.GenerateBatch(ctx, uploads, userPrompt, pref)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
