package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/menta2k/meme-maker/internal/config"
	"github.com/menta2k/meme-maker/internal/logging"
	"github.com/menta2k/meme-maker/internal/utils"
	"github.com/menta2k/meme-maker/pkg/cropper"
	"github.com/menta2k/meme-maker/pkg/pipeline"
	"github.com/menta2k/meme-maker/pkg/processing"
	"github.com/menta2k/meme-maker/pkg/render"
	"github.com/menta2k/meme-maker/pkg/types"
)

func main() {
	var in, userPrompt, outDir, configPath, crop, format string
	var debug, batch, noAlign bool

	flag.StringVar(&in, "in", "", "comma separated input images or directories (positional args also accepted)")
	flag.StringVar(&userPrompt, "prompt", "", "optional caption direction, e.g. \"make it silly\"")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&configPath, "config", config.GetConfigPath(), "path to JSON config file")
	flag.StringVar(&crop, "crop", "", "crop preference: mouth_closeup")
	flag.StringVar(&format, "format", "", "meme format: png|jpg|webp (default from config)")
	flag.BoolVar(&debug, "debug", false, "write crop overlays and raw model output")
	flag.BoolVar(&batch, "batch", false, "rank crops across all inputs and produce one set of five memes")
	flag.BoolVar(&noAlign, "no-align", false, "skip the second captions pass on the final crops")
	flag.Parse()

	inputs := flag.Args()
	for _, s := range strings.Split(in, ",") {
		if s = strings.TrimSpace(s); s != "" {
			inputs = append(inputs, s)
		}
	}
	if len(inputs) == 0 {
		log.Fatalf("usage: %s [-prompt text] [-crop mouth_closeup] [-batch] [-out dir] [-debug] image.jpg|dir ...", filepath.Base(os.Args[0]))
	}

	pref := types.CropPreference(crop)
	if pref != types.PreferDefault && pref != types.PreferMouthCloseup {
		log.Fatalf("unknown crop preference: %s", crop)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if noAlign {
		cfg.Pipeline.AlignCaptionsToCrops = false
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	files, err := utils.ExpandInputs(inputs)
	if err != nil {
		log.Fatal(err)
	}
	if len(files) == 0 {
		log.Fatal("no image files found")
	}

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}

	processor := &processing.Processor{MaxModelDim: cfg.Pipeline.MaxModelDim, JPEGQuality: cfg.Pipeline.JPEGQuality}
	p := pipeline.New(pipeline.Options{
		Generator: gen,
		Store:     render.NewDirStore(cfg.Output.Dir, cfg.Output.Format, cfg.Output.Quality, logger),
		Processor: processor,
		Cropper:   cropper.New(),
		Limits: processing.Limits{
			MaxBytes:      cfg.Limits.MaxUploadBytes,
			MaxTotalBytes: cfg.Limits.MaxUploadTotalBytes,
			MaxFiles:      cfg.Limits.MaxUploadFiles,
		},
		AlignCaptionsToCrops: cfg.Pipeline.AlignCaptionsToCrops,
		Logger:               logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := runner{pipeline: p, processor: processor, outDir: cfg.Output.Dir, debug: debug, logger: logger}

	var results []*pipeline.Result
	if batch {
		res, err := r.runBatch(ctx, files, userPrompt, pref)
		if err != nil {
			log.Fatal(err)
		}
		results = append(results, res)
	} else {
		for _, f := range files {
			res, err := r.runOne(ctx, f, userPrompt, pref)
			if err != nil {
				log.Printf("%s: %v", f, err)
				continue
			}
			results = append(results, res)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Fatal(err)
	}
}

type runner struct {
	pipeline  *pipeline.Pipeline
	processor *processing.Processor
	outDir    string
	debug     bool
	logger    *slog.Logger
}

func (r runner) runOne(ctx context.Context, path, userPrompt string, pref types.CropPreference) (*pipeline.Result, error) {
	data, mime, err := r.processor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	res, err := r.pipeline.Generate(ctx, pipeline.Input{Image: data, MimeType: mime, UserPrompt: userPrompt, CropPreference: pref})
	if err != nil {
		return nil, err
	}
	r.logger.Info("generated memes", "input", path, "size", utils.FormatFileSize(int64(len(data))), "request_id", res.RequestID,
		"fallback", res.FallbackUsed, "label", res.ExpressionLabel, "captions_source", res.CaptionsSource)

	if r.debug {
		if img, err := r.processor.DecodeImage(data); err == nil && len(res.CropRects) > 0 {
			r.writeOverlay(res.RequestID, img, res.CropRects)
		}
		r.writeTranscripts(res)
	}
	return res, nil
}

func (r runner) runBatch(ctx context.Context, paths []string, userPrompt string, pref types.CropPreference) (*pipeline.Result, error) {
	uploads := make([]pipeline.Upload, 0, len(paths))
	var total int64
	for _, path := range paths {
		data, mime, err := r.processor.LoadImage(path)
		if err != nil {
			return nil, err
		}
		total += int64(len(data))
		uploads = append(uploads, pipeline.Upload{Name: filepath.Base(path), Data: data, MimeType: mime})
	}

	res, err := r.pipeline.GenerateBatch(ctx, uploads, userPrompt, pref)
	if res == nil {
		return nil, err
	}
	if err != nil {
		r.logger.Warn("batch finished on fallback", "request_id", res.RequestID, "error", err)
	}
	r.logger.Info("generated memes", "inputs", len(paths), "size", utils.FormatFileSize(total), "request_id", res.RequestID,
		"fallback", res.FallbackUsed, "label", res.ExpressionLabel, "captions_source", res.CaptionsSource)

	if r.debug {
		// Overlays are per source photo; group the chosen rects by upload.
		bySource := map[int][]image.Rectangle{}
		for i, c := range res.Candidates {
			if i < len(res.CropRects) {
				bySource[c.SourceIndex] = append(bySource[c.SourceIndex], res.CropRects[i])
			}
		}
		for idx, rects := range bySource {
			img, err := r.processor.DecodeImage(uploads[idx].Data)
			if err != nil {
				continue
			}
			r.writeOverlay(fmt.Sprintf("%s_src%d", res.RequestID, idx+1), img, rects)
		}
		r.writeTranscripts(res)
	}
	return res, nil
}

func (r runner) writeOverlay(name string, img image.Image, rects []image.Rectangle) {
	path := filepath.Join(r.outDir, "debug", name+"_crops.png")
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		r.logger.Warn("debug overlay save failed", "error", err)
		return
	}
	if err := r.processor.SaveImage(r.processor.DebugOverlay(img, rects), path, "png", 0, false); err != nil {
		r.logger.Warn("debug overlay save failed", "path", path, "error", err)
		return
	}
	r.logger.Info("wrote debug overlay", "path", path)
}

func (r runner) writeTranscripts(res *pipeline.Result) {
	dir := filepath.Join(r.outDir, "debug")
	for suffix, parts := range map[string][]string{"analysis": res.Debug, "captions": res.CaptionsDebug} {
		if len(parts) == 0 {
			continue
		}
		path, err := utils.WriteDebugText(dir, fmt.Sprintf("%s_%s.txt", res.RequestID, suffix), parts)
		if err != nil {
			r.logger.Warn("debug transcript save failed", "error", err)
			continue
		}
		r.logger.Info("wrote debug transcript", "path", path)
	}
}
