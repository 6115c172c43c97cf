package watermark

import (
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"automark/models"
)

func TestLogoHeight(t *testing.T) {
	cases := []struct {
		h     int
		scale float64
		want  int
	}{
		{1000, 0.3, 300},
		{1080, 0.2, 216},
		{1920, 0.15, 288},
		{100, 0.001, 1},
		{719, 0.5, 359},
	}
	for _, c := range cases {
		if got := LogoHeight(c.h, c.scale); got != c.want {
			t.Errorf("LogoHeight(%d, %v) = %d, want %d", c.h, c.scale, got, c.want)
		}
	}
}

func TestResolveBottomRight(t *testing.T) {
	// 1000px source at scale 0.3 gives a 300px logo; a 2:1 logo is 600 wide
	size := LogoSize(models.BottomRight, LogoHeight(1000, 0.3), 2)
	if size != image.Pt(600, 300) {
		t.Fatalf("logo size = %v", size)
	}
	got := Resolve(models.BottomRight, size)
	want := image.Pt(FrameWidth-600-PaddingX, FrameHeight-300-PaddingY)
	if got != want {
		t.Errorf("anchor = %v, want %v", got, want)
	}
	if got != image.Pt(465, 1565) {
		t.Errorf("anchor = %v, want (465,1565)", got)
	}
}

func TestResolveCorners(t *testing.T) {
	logo := image.Pt(100, 50)
	cases := map[models.Position]image.Point{
		models.TopLeft:    image.Pt(15, 55),
		models.TopRight:   image.Pt(1080-100-15, 55),
		models.BottomLeft: image.Pt(15, 1920-50-55),
		"sideways":        image.Pt(1080-100-15, 1920-50-55),
	}
	for pos, want := range cases {
		if got := Resolve(pos, logo); got != want {
			t.Errorf("Resolve(%s) = %v, want %v", pos, got, want)
		}
	}
}

func TestFullModeIgnoresScale(t *testing.T) {
	for _, scale := range []float64{0.01, 0.2, 5} {
		size := LogoSize(models.Full, LogoHeight(1000, scale), 3)
		if size != image.Pt(FrameWidth, FrameHeight) {
			t.Errorf("full size at scale %v = %v", scale, size)
		}
		if got := Resolve(models.Full, size); got != image.Pt(0, 0) {
			t.Errorf("full anchor = %v", got)
		}
	}
	graph := FilterGraph(models.Full, 42)
	if !strings.Contains(graph, "[1:v]scale=1080:1920[logo]") || !strings.Contains(graph, "overlay=0:0[outv]") {
		t.Errorf("full graph = %s", graph)
	}
}

func TestFilterGraph(t *testing.T) {
	want := "[0:v]scale='if(gt(iw/ih,1080/1920),-1,1080)':'if(gt(iw/ih,1080/1920),1920,-1)',crop=1080:1920,setsar=1[v];" +
		"[1:v]scale=-1:300[logo];" +
		"[v][logo]overlay=main_w-overlay_w-15:main_h-overlay_h-55[outv]"
	if got := FilterGraph(models.BottomRight, 300); got != want {
		t.Errorf("graph =\n%s\nwant\n%s", got, want)
	}

	anchors := map[models.Position]string{
		models.TopLeft:    "overlay=15:55[outv]",
		models.TopRight:   "overlay=main_w-overlay_w-15:55[outv]",
		models.BottomLeft: "overlay=15:main_h-overlay_h-55[outv]",
		"unknown":         "overlay=main_w-overlay_w-15:main_h-overlay_h-55[outv]",
	}
	for pos, suffix := range anchors {
		if got := FilterGraph(pos, 10); !strings.HasSuffix(got, suffix) {
			t.Errorf("%s graph = %s", pos, got)
		}
	}
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	cases := map[string]string{
		"/in/clip.mov":    "clip_20240102_150405_marked.mov",
		"/in/holiday.mp4": "holiday_20240102_150405_marked.mp4",
		"/in/raw":         "raw_20240102_150405_marked.mp4",
		"/in/a.b.mkv":     "a.b_20240102_150405_marked.mkv",
	}
	for in, name := range cases {
		if got, want := OutputPath(in, "/out", now), filepath.Join("/out", name); got != want {
			t.Errorf("OutputPath(%q) = %q, want %q", in, got, want)
		}
	}
	if got := OutputPath("/in/clip.mp4", "", now); filepath.Dir(got) != "/in" {
		t.Errorf("empty output dir should default to input dir, got %q", got)
	}
}

func TestThreads(t *testing.T) {
	if Threads(6) != 6 {
		t.Error("override ignored")
	}
	if Threads(0) < 1 {
		t.Error("threads must be at least one")
	}
}
