package encoder

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseHeight(t *testing.T) {
	cases := []struct {
		out  string
		want int
	}{
		{"1080\n", 1080},
		{"1920,\n", 1920},
		{"720\n720\n", 720},
		{"  480  ", 480},
	}
	for _, c := range cases {
		got, err := parseHeight("clip.mp4", c.out)
		if err != nil {
			t.Errorf("parseHeight(%q): %v", c.out, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseHeight(%q) = %d, want %d", c.out, got, c.want)
		}
	}
}

func TestParseHeightRejects(t *testing.T) {
	for _, out := range []string{"", "N/A", "0", "-5"} {
		_, err := parseHeight("clip.mp4", out)
		var pe *ProbeError
		if !errors.As(err, &pe) {
			t.Errorf("parseHeight(%q) error = %v, want *ProbeError", out, err)
			continue
		}
		if pe.Path != "clip.mp4" {
			t.Errorf("ProbeError path = %q", pe.Path)
		}
	}
}

type recordingRunner struct {
	name string
	args []string
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.name = name
	r.args = args
	if r.err != nil {
		return []byte("Invalid data found when processing input"), r.err
	}
	return nil, nil
}

func TestFFmpegScalerArgs(t *testing.T) {
	rr := &recordingRunner{}
	s := FFmpegScaler{Path: "/opt/ffmpeg", Runner: rr}
	if err := s.ScaleImage(context.Background(), "logo.png", "logo_h300.png", 300); err != nil {
		t.Fatalf("ScaleImage: %v", err)
	}
	if rr.name != "/opt/ffmpeg" {
		t.Errorf("binary = %q", rr.name)
	}
	want := []string{"-y", "-i", "logo.png", "-vf", "scale=-1:300", "logo_h300.png"}
	if !reflect.DeepEqual(rr.args, want) {
		t.Errorf("args = %v, want %v", rr.args, want)
	}
}

func TestFFmpegScalerFailure(t *testing.T) {
	rr := &recordingRunner{err: errors.New("exit status 1")}
	err := FFmpegScaler{Runner: rr}.ScaleImage(context.Background(), "bad.png", "out.png", 10)
	if err == nil || !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if rr.name != "ffmpeg" {
		t.Errorf("default binary = %q", rr.name)
	}

	if err := (FFmpegScaler{Runner: rr}).ScaleImage(context.Background(), "a", "b", 0); err == nil {
		t.Error("zero height must be rejected")
	}
}

func TestCheckBinariesMissing(t *testing.T) {
	status := CheckBinaries(Binaries{FFmpeg: "definitely-not-ffmpeg-xyz", FFprobe: "definitely-not-ffprobe-xyz"})
	if status["definitely-not-ffmpeg-xyz"] || status["definitely-not-ffprobe-xyz"] {
		t.Errorf("missing binaries reported present: %v", status)
	}
}
