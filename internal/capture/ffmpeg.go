package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// FFmpegSource grabs single JPEG frames from a V4L2 video device by
// shelling out to ffmpeg. Device is e.g. "/dev/video0".
type FFmpegSource struct {
	Device string
}

func NewFFmpegSource(device string) *FFmpegSource {
	if device == "" {
		device = "/dev/video0"
	}
	return &FFmpegSource{Device: device}
}

// Capture pulls one frame and returns it JPEG-encoded on stdout.
func (s *FFmpegSource) Capture(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-i", s.Device,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame grab from %s: %w (%s)", s.Device, err, lastLine(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg frame grab from %s: empty frame", s.Device)
	}
	return stdout.Bytes(), nil
}

func lastLine(b []byte) string {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}
