package metadata

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"go-media-download/internal/models"
)

const sampleDump = `{
  "title": "Test Clip",
  "uploader": "someone",
  "duration": 123.4,
  "thumbnail": "https://example.com/t.jpg",
  "formats": [
    {"format_id": "140", "vcodec": "none", "acodec": "mp4a.40.2", "abr": 129.5, "ext": "m4a", "filesize": 2000000},
    {"format_id": "137", "height": 1080, "vcodec": "avc1.640028", "acodec": "none", "tbr": 4400.1, "ext": "mp4", "filesize": 80000000, "fps": 30},
    {"format_id": "22", "height": 720, "vcodec": "avc1.64001F", "acodec": "mp4a.40.2", "tbr": 2000, "ext": "mp4"},
    {"format_id": "sb0", "height": null, "vcodec": "none", "acodec": "none", "ext": "mhtml"}
  ]
}`

func TestParseInfoJSON(t *testing.T) {
	info, err := ParseInfoJSON([]byte(sampleDump))
	if err != nil {
		t.Fatalf("ParseInfoJSON: %v", err)
	}

	if info.Title != "Test Clip" || info.Uploader != "someone" {
		t.Errorf("title/uploader = %q/%q", info.Title, info.Uploader)
	}
	if info.Duration != 123.4 {
		t.Errorf("duration = %v, want 123.4", info.Duration)
	}
	if len(info.Variants) != 4 {
		t.Fatalf("got %d variants, want 4", len(info.Variants))
	}

	audio := info.Variants[0]
	if !audio.IsAudioOnly() {
		t.Errorf("format 140 should be audio-only: %+v", audio)
	}
	if audio.Bitrate != 129.5 {
		t.Errorf("audio bitrate = %v, want abr fallback 129.5", audio.Bitrate)
	}

	video := info.Variants[1]
	if video.Height != 1080 || video.HasAudio() || !video.HasVideo() {
		t.Errorf("format 137 mapped wrong: %+v", video)
	}
	if video.FileSize != 80000000 || video.FrameRate != 30 {
		t.Errorf("format 137 size/fps = %d/%v", video.FileSize, video.FrameRate)
	}

	storyboard := info.Variants[3]
	if storyboard.HasVideo() || storyboard.HasAudio() || storyboard.Height != 0 {
		t.Errorf("storyboard mapped wrong: %+v", storyboard)
	}
}

func TestParseInfoJSONErrors(t *testing.T) {
	if _, err := ParseInfoJSON([]byte("not json")); !errors.Is(err, ErrParseFailure) {
		t.Errorf("invalid JSON: got %v, want ErrParseFailure", err)
	}
	if _, err := ParseInfoJSON([]byte("{}")); !errors.Is(err, ErrParseFailure) {
		t.Errorf("empty document: got %v, want ErrParseFailure", err)
	}
}

func TestNormalizeCodec(t *testing.T) {
	if got := normalizeCodec(""); got != models.CodecNone {
		t.Errorf("normalizeCodec(\"\") = %q", got)
	}
	if got := normalizeCodec("none"); got != models.CodecNone {
		t.Errorf("normalizeCodec(none) = %q", got)
	}
	if got := normalizeCodec("avc1"); got != "avc1" {
		t.Errorf("normalizeCodec(avc1) = %q", got)
	}
}

func TestClassifyRunError(t *testing.T) {
	ctx := context.Background()
	genericErr := errors.New("exit status 1")

	tests := []struct {
		name   string
		err    error
		stderr string
		want   error
	}{
		{"binary missing", &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}, "", ErrToolMissing},
		{"404", genericErr, "ERROR: [generic] 404: Not Found", ErrNotFound},
		{"unsupported url", genericErr, "ERROR: Unsupported URL: https://x", ErrNotFound},
		{"private", genericErr, "ERROR: Private video. Sign in", ErrUnavailable},
		{"removed", genericErr, "ERROR: This video has been removed", ErrUnavailable},
		{"network", genericErr, "ERROR: Unable to download webpage: timed out", ErrNetworkFailure},
		{"unclassified", genericErr, "ERROR: something novel", ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyRunError(ctx, tt.err, tt.stderr)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyRunError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyRunErrorTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := classifyRunError(ctx, errors.New("signal: killed"), "")
	if !errors.Is(got, ErrNetworkFailure) {
		t.Errorf("cancelled context: got %v, want ErrNetworkFailure", got)
	}
}

func TestNewYtdlpResolverDefaults(t *testing.T) {
	r := NewYtdlpResolver("", 0)
	if r.binPath != "yt-dlp" {
		t.Errorf("binPath = %q, want yt-dlp", r.binPath)
	}
	if r.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", r.timeout, DefaultTimeout)
	}
}
