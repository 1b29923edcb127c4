// Package chunk implements the ChunkPlanner: a pure function that turns a
// decoded text body plus an extension hint into a sequence of overlapping
// character windows with newline-snap bias.
package chunk

// Sizing policy defaults, grounded on the teacher's chunk-size constants
// (DefaultMaxChunkTokens, DefaultOverlapTokens, TokensPerChar) but
// retargeted at this spec's character-budget formulas.
const (
	// DefaultMaxChars is used when no configured_max is supplied.
	DefaultMaxChars = 2000
	// minEffectiveMax is the floor for format-tuned extensions (json/xml).
	minEffectiveMax = 1500
	// minOverlap bounds the overlap clamp from below.
	minOverlap = 50
)

// Config holds the per-coordinator effective max_chars/overlap derived
// once per indexing pass, per §4.1's sizing policy:
//
//	max_chars = min(configured_max, max(500, floor(0.8*token_limit)*4))
//	overlap   = clamp(floor(0.05*max_chars), 50, configured_overlap_max)
type Config struct {
	MaxChars int
	Overlap  int
}

// DeriveConfig computes the per-coordinator Config from a configured
// ceiling, the embedding model's token limit, and a configured overlap
// ceiling (0 means "no ceiling").
func DeriveConfig(configuredMax, modelTokenLimit, configuredOverlapMax int) Config {
	charBudget := floorMul(modelTokenLimit, 0.8) * 4
	if charBudget < 500 {
		charBudget = 500
	}
	maxChars := configuredMax
	if maxChars <= 0 || charBudget < maxChars {
		maxChars = charBudget
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	overlap := floorMul(maxChars, 0.05)
	if overlap < minOverlap {
		overlap = minOverlap
	}
	if configuredOverlapMax > 0 && overlap > configuredOverlapMax {
		overlap = configuredOverlapMax
	}

	return Config{MaxChars: maxChars, Overlap: overlap}
}

func floorMul(n int, f float64) int {
	return int(float64(n) * f)
}

// effectiveBudget applies the json/xml format tuning:
//
//	effective_max     = max(1500, floor(0.75*max_chars))
//	effective_overlap = min(overlap, effective_max/4)
func effectiveBudget(cfg Config, extension string) (maxChars, overlap int) {
	switch normalizeExt(extension) {
	case "json", "xml":
		maxChars = floorMul(cfg.MaxChars, 0.75)
		if maxChars < minEffectiveMax {
			maxChars = minEffectiveMax
		}
		overlap = cfg.Overlap
		if quarter := maxChars / 4; overlap > quarter {
			overlap = quarter
		}
		return maxChars, overlap
	default:
		return cfg.MaxChars, cfg.Overlap
	}
}

func normalizeExt(extension string) string {
	ext := extension
	for len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	out := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
