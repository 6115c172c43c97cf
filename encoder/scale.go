package encoder

import (
	"context"
	"fmt"
	"strings"
)

// FFmpegScaler resizes still images with ffmpeg, keeping the aspect ratio
type FFmpegScaler struct {
	Path   string
	Runner Runner
}

// ScaleImage writes a copy of in to out scaled to the given pixel height.
func (s FFmpegScaler) ScaleImage(ctx context.Context, in, out string, height int) error {
	if height < 1 {
		return fmt.Errorf("invalid target height %d", height)
	}
	bin := s.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	runner := s.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	stderr, err := runner.Run(ctx, bin, "-y", "-i", in, "-vf", fmt.Sprintf("scale=-1:%d", height), out)
	if err != nil {
		return fmt.Errorf("scale %s to %dpx: %w: %s", in, height, err, strings.TrimSpace(string(stderr)))
	}
	return nil
}
