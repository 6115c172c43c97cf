package watermark

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"time"

	"automark/logger"
	"automark/models"
)

// Encoder settings: fast preset, fixed quality target.
const (
	Preset = "veryfast"
	CRF    = 23
)

// Prober reports the pixel height of a video
type Prober interface {
	ProbeHeight(ctx context.Context, path string) (int, error)
}

// LogoCache hands out pre-scaled logos
type LogoCache interface {
	GetOrCreate(ctx context.Context, logoPath string, height int) (string, bool)
}

// Request holds the parameters of one watermark render
type Request struct {
	VideoPath string
	LogoPath  string
	OutputDir string
	Position  models.Position
	Scale     float64
}

// Command is a fully resolved transcoder invocation
type Command struct {
	Binary       string
	Args         []string
	OutputPath   string
	FilterGraph  string
	LogoInput    string // logo file fed to the transcoder, cached or source
	LogoHeight   int
	Placement    image.Rectangle // logo area on the output frame
	VideoHeight  int
	HeightProbed bool
}

// Synthesizer turns job parameters into a transcoder command
type Synthesizer struct {
	FFmpegPath string
	Threads    int // 0 selects half the cores
	Prober     Prober
	Cache      LogoCache // nil disables pre-scaling
	Now        func() time.Time
}

// Synthesize resolves geometry and builds the command. Probe and logo scaling
// failures degrade to fallbacks; only an unusable output directory is an error.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Command, error) {
	if req.VideoPath == "" || req.LogoPath == "" {
		return Command{}, errors.New("video and logo paths are required")
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if req.OutputDir != "" {
		if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
			return Command{}, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	outPath := OutputPath(req.VideoPath, req.OutputDir, now())

	videoHeight, probed := s.probe(ctx, req.VideoPath)
	logoHeight := LogoHeight(videoHeight, req.Scale)

	logoInput := req.LogoPath
	if req.Position != models.Full && s.Cache != nil {
		if cached, ok := s.Cache.GetOrCreate(ctx, req.LogoPath, logoHeight); ok {
			logoInput = cached
		}
	}

	graph := FilterGraph(req.Position, logoHeight)
	placement := Placement(req.Position, logoHeight, logoAspect(req.LogoPath))
	logger.Debugf("Logo %s placed at %v on %dx%d frame", req.LogoPath, placement, FrameWidth, FrameHeight)
	bin := s.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}

	args := []string{
		"-y",
		"-i", req.VideoPath,
		"-i", logoInput,
		"-filter_complex", graph,
		"-map", "[outv]",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-preset", Preset,
		"-crf", strconv.Itoa(CRF),
		"-threads", strconv.Itoa(Threads(s.Threads)),
		"-c:a", "copy",
		outPath,
	}

	return Command{
		Binary:       bin,
		Args:         args,
		OutputPath:   outPath,
		FilterGraph:  graph,
		LogoInput:    logoInput,
		LogoHeight:   logoHeight,
		Placement:    placement,
		VideoHeight:  videoHeight,
		HeightProbed: probed,
	}, nil
}

func (s *Synthesizer) probe(ctx context.Context, path string) (int, bool) {
	if s.Prober == nil {
		return FallbackHeight, false
	}
	h, err := s.Prober.ProbeHeight(ctx, path)
	if err != nil {
		logger.Warnf("Probe failed, assuming %dpx height: %v", FallbackHeight, err)
		return FallbackHeight, false
	}
	if h <= 0 {
		logger.Warnf("Probe of %s reported height %d, assuming %dpx", path, h, FallbackHeight)
		return FallbackHeight, false
	}
	return h, true
}

// logoAspect reads the logo's width/height ratio from its header. Formats
// without a registered decoder are treated as square.
func logoAspect(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 1
	}
	return float64(cfg.Width) / float64(cfg.Height)
}
