package watermark

import (
	"fmt"
	"image"
	"math"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"automark/models"
)

// Target frame every input is scaled and center-cropped to.
const (
	FrameWidth  = 1080
	FrameHeight = 1920
)

// FallbackHeight is assumed when the source height cannot be probed.
const FallbackHeight = 1920

// Logo inset from the frame edges. The bottom inset is larger to clear
// on-screen playback controls.
const (
	PaddingX = 15
	PaddingY = 55
)

// LogoHeight returns floor(videoHeight*scale), never less than one pixel.
func LogoHeight(videoHeight int, scale float64) int {
	h := math.Floor(float64(videoHeight) * scale)
	if math.IsNaN(h) || h < 1 {
		return 1
	}
	if h > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(h)
}

// Anchor returns the ffmpeg overlay expression for position. Unknown values
// anchor bottom-right.
func Anchor(position models.Position) string {
	switch position {
	case models.TopLeft:
		return fmt.Sprintf("%d:%d", PaddingX, PaddingY)
	case models.TopRight:
		return fmt.Sprintf("main_w-overlay_w-%d:%d", PaddingX, PaddingY)
	case models.BottomLeft:
		return fmt.Sprintf("%d:main_h-overlay_h-%d", PaddingX, PaddingY)
	case models.Full:
		return "0:0"
	default:
		return fmt.Sprintf("main_w-overlay_w-%d:main_h-overlay_h-%d", PaddingX, PaddingY)
	}
}

// Resolve evaluates the anchor for a logo of the given size on the target frame.
// In full mode the logo is stretched to the frame, so the anchor is the origin.
func Resolve(position models.Position, logo image.Point) image.Point {
	right := FrameWidth - logo.X - PaddingX
	bottom := FrameHeight - logo.Y - PaddingY
	switch position {
	case models.TopLeft:
		return image.Pt(PaddingX, PaddingY)
	case models.TopRight:
		return image.Pt(right, PaddingY)
	case models.BottomLeft:
		return image.Pt(PaddingX, bottom)
	case models.Full:
		return image.Pt(0, 0)
	default:
		return image.Pt(right, bottom)
	}
}

// LogoSize returns the dimensions the logo is scaled to. Width is derived from
// the source aspect ratio except in full mode, which ignores scale entirely.
func LogoSize(position models.Position, logoHeight int, aspect float64) image.Point {
	if position == models.Full {
		return image.Pt(FrameWidth, FrameHeight)
	}
	w := int(math.Round(float64(logoHeight) * aspect))
	if w < 1 {
		w = 1
	}
	return image.Pt(w, logoHeight)
}

// Placement is the rectangle the logo covers on the target frame.
func Placement(position models.Position, logoHeight int, aspect float64) image.Rectangle {
	size := LogoSize(position, logoHeight, aspect)
	at := Resolve(position, size)
	return image.Rectangle{Min: at, Max: at.Add(size)}
}

// FilterGraph builds the filter_complex that covers and crops the video to the
// target frame, scales the logo and overlays it.
func FilterGraph(position models.Position, logoHeight int) string {
	ratio := fmt.Sprintf("%d/%d", FrameWidth, FrameHeight)
	parts := []string{
		fmt.Sprintf("[0:v]scale='if(gt(iw/ih,%s),-1,%d)':'if(gt(iw/ih,%s),%d,-1)',crop=%d:%d,setsar=1[v]",
			ratio, FrameWidth, ratio, FrameHeight, FrameWidth, FrameHeight),
	}
	if position == models.Full {
		parts = append(parts, fmt.Sprintf("[1:v]scale=%d:%d[logo]", FrameWidth, FrameHeight))
	} else {
		parts = append(parts, fmt.Sprintf("[1:v]scale=-1:%d[logo]", logoHeight))
	}
	parts = append(parts, fmt.Sprintf("[v][logo]overlay=%s[outv]", Anchor(position)))
	return strings.Join(parts, ";")
}

// Threads returns the encoder thread count: the override when positive,
// otherwise half the cores, at least one.
func Threads(override int) int {
	if override > 0 {
		return override
	}
	n := runtime.NumCPU() / 2
	if n < 1 {
		return 1
	}
	return n
}

// OutputPath names the rendered file after the input, stamped with the
// invocation time: clip.mov -> clip_20240102_150405_marked.mov
func OutputPath(inputPath, outputDir string, now time.Time) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".mp4"
	}
	name := fmt.Sprintf("%s_%s_marked%s", stem, now.Format("20060102_150405"), ext)
	if outputDir == "" {
		return filepath.Join(filepath.Dir(inputPath), name)
	}
	return filepath.Join(outputDir, name)
}
