package executor

import (
	"reflect"
	"strings"
	"testing"
)

func TestParsePercent(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{"typical progress", "[download]  42.3% of 120.45MiB at 2.50MiB/s ETA 00:27", 42.3, true},
		{"integer percent", "[download] 100% of 120.45MiB in 00:48", 100, true},
		{"start of download", "[download]   0.0% of ~4.52MiB at Unknown speed", 0, true},
		{"no percent", "[merger] Merging formats into \"out.mp4\"", 0, false},
		{"empty line", "", 0, false},
		{"over 100 clamped", "[download] 100.3% of 1MiB", 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePercent(tt.line)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParsePercent(%q) = %v, %v; want %v, %v", tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	req := Request{
		URL:            "https://example.com/v",
		FormatSelector: "137+140",
		OutputTemplate: "/tmp/out/Title.%(ext)s",
	}

	t.Run("without ffmpeg path", func(t *testing.T) {
		y := New("", "")
		args := y.Args(req)
		want := []string{
			"--newline", "--no-playlist", "--no-warnings",
			"-f", "137+140",
			"-o", "/tmp/out/Title.%(ext)s",
			"--merge-output-format", "mp4",
			"https://example.com/v",
		}
		if !reflect.DeepEqual(args, want) {
			t.Errorf("Args() = %v, want %v", args, want)
		}
	})

	t.Run("with ffmpeg path", func(t *testing.T) {
		y := New("/opt/yt-dlp", "/opt/ffmpeg")
		args := y.Args(req)
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "--ffmpeg-location /opt/ffmpeg") {
			t.Errorf("Args() missing ffmpeg location: %v", args)
		}
		if args[len(args)-1] != req.URL {
			t.Errorf("URL must be the final argument, got %v", args)
		}
	})
}

func TestScanLinesSplitsOnCarriageReturns(t *testing.T) {
	// yt-dlp rewrites progress lines with \r on some terminals.
	input := "[download]  10.0% of 1MiB\r[download]  55.0% of 1MiB\r\n[download] 100% of 1MiB\n"
	var lines []string
	scanLines(strings.NewReader(input), func(line string) {
		lines = append(lines, line)
	})

	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}

	var percents []float64
	for _, l := range lines {
		if p, ok := ParsePercent(l); ok {
			percents = append(percents, p)
		}
	}
	if !reflect.DeepEqual(percents, []float64{10, 55, 100}) {
		t.Errorf("percents = %v, want [10 55 100]", percents)
	}
}

func TestNewDefaultsBinPath(t *testing.T) {
	y := New("", "")
	if y.binPath != "yt-dlp" {
		t.Errorf("binPath = %q, want yt-dlp", y.binPath)
	}
	if y.mergeFormat != DefaultMergeFormat {
		t.Errorf("mergeFormat = %q, want %q", y.mergeFormat, DefaultMergeFormat)
	}
}
