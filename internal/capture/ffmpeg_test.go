package capture

import "testing"

func TestNewFFmpegSourceDefaultsDevice(t *testing.T) {
	if got := NewFFmpegSource("").Device; got != "/dev/video0" {
		t.Fatalf("expected default device /dev/video0, got %q", got)
	}
	if got := NewFFmpegSource("/dev/video2").Device; got != "/dev/video2" {
		t.Fatalf("expected configured device, got %q", got)
	}
}
