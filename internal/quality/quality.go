// Package quality turns the raw, redundant stream listing reported by the
// metadata resolver into a deduplicated, height-ordered quality ladder.
package quality

import (
	"sort"

	"go-media-download/internal/models"
)

// Ladder is a resolved list of download options for one subject, sorted
// strictly descending by height with no duplicate heights.
type Ladder []models.Quality

// Resolve builds a quality ladder from a raw variant listing. It is pure and
// deterministic: the same input always yields the same ladder.
//
// Variants without a known height cannot be keyed into the ladder and are
// skipped. When two natively-combined variants share a height, the later one
// in the input wins; that mirrors the listing order yt-dlp produces (worst to
// best) rather than comparing the candidates, and is intentional.
func Resolve(variants []models.StreamVariant) Ladder {
	bestAudio, hasAudio := bestAudioOnly(variants)

	native := make(map[int]models.StreamVariant)
	videoOnly := make(map[int]models.StreamVariant)
	for _, v := range variants {
		if !v.HasVideo() || v.Height <= 0 {
			continue
		}
		if v.HasAudio() {
			// Last seen wins.
			native[v.Height] = v
			continue
		}
		if cur, ok := videoOnly[v.Height]; !ok || v.Bitrate > cur.Bitrate {
			videoOnly[v.Height] = v
		}
	}

	heights := make([]int, 0, len(native)+len(videoOnly))
	seen := make(map[int]bool)
	for h := range native {
		heights = append(heights, h)
		seen[h] = true
	}
	for h := range videoOnly {
		if !seen[h] {
			heights = append(heights, h)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))

	ladder := make(Ladder, 0, len(heights))
	for _, h := range heights {
		primary, isNative := native[h]
		if !isNative {
			primary = videoOnly[h]
		}

		q := models.Quality{
			Label:              models.QualityLabel(h),
			Height:             h,
			PrimaryVariantID:   primary.ID,
			Container:          primary.Container,
			FileSizeBytes:      primary.FileSize,
			FrameRate:          primary.FrameRate,
			IsNativelyCombined: isNative,
		}
		if !isNative && hasAudio {
			q.NeedsAudioMerge = true
			q.BestAudioVariantID = bestAudio.ID
		}
		ladder = append(ladder, q)
	}
	return ladder
}

// bestAudioOnly selects the audio-only variant with the highest bitrate.
// Ties keep the earliest variant in input order.
func bestAudioOnly(variants []models.StreamVariant) (models.StreamVariant, bool) {
	var best models.StreamVariant
	found := false
	for _, v := range variants {
		if !v.IsAudioOnly() {
			continue
		}
		if !found || v.Bitrate > best.Bitrate {
			best = v
			found = true
		}
	}
	return best, found
}

// Best returns the highest-quality entry, i.e. the maximum height.
func (l Ladder) Best() (models.Quality, bool) {
	if len(l) == 0 {
		return models.Quality{}, false
	}
	return l[0], true
}

// BestNative returns the highest entry that needs no merge step.
func (l Ladder) BestNative() (models.Quality, bool) {
	for _, q := range l {
		if q.IsNativelyCombined {
			return q, true
		}
	}
	return models.Quality{}, false
}

// ByHeight returns the entry with exactly the given height.
func (l Ladder) ByHeight(height int) (models.Quality, bool) {
	for _, q := range l {
		if q.Height == height {
			return q, true
		}
	}
	return models.Quality{}, false
}

// Native returns the subset of entries that already combine video and audio.
func (l Ladder) Native() Ladder {
	var out Ladder
	for _, q := range l {
		if q.IsNativelyCombined {
			out = append(out, q)
		}
	}
	return out
}

// MergeRequired returns the subset of entries that need a separate audio merge.
func (l Ladder) MergeRequired() Ladder {
	var out Ladder
	for _, q := range l {
		if q.NeedsAudioMerge {
			out = append(out, q)
		}
	}
	return out
}
