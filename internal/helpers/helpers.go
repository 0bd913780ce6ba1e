package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// SubstituteChar replaces characters that are not filesystem-safe in
// destination filenames.
const SubstituteChar = "_"

// unsafeChars are characters rejected by at least one supported filesystem.
const unsafeChars = `/\:*?"<>|`

// SanitizeFilename makes a display title safe to use as a filename by
// replacing unsafe characters with SubstituteChar. Case and spacing are
// preserved so the file stays recognizable. Two titles that differ only in
// unsafe characters sanitize to the same name and will collide; callers are
// expected to tolerate that.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, ch := range name {
		if ch < 0x20 || strings.ContainsRune(unsafeChars, ch) {
			b.WriteString(SubstituteChar)
			continue
		}
		b.WriteRune(ch)
	}
	sanitized := strings.TrimSpace(b.String())
	// Trailing dots are invalid on Windows shares.
	sanitized = strings.TrimRight(sanitized, ".")
	if sanitized == "" {
		return "untitled"
	}
	return sanitized
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1 // Handle very large sizes
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
// Uses standard directory permissions (0700).
func CheckAndMakeDir(dir string) bool {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}

// HashFileBlake3 computes the BLAKE3 checksum of a file, hex encoded.
func HashFileBlake3(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
