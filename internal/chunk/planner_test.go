package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_ShortTextIsSingleChunk(t *testing.T) {
	cfg := Config{MaxChars: 100, Overlap: 10}
	got := Plan("hello world", "txt", cfg, nil)
	require.Equal(t, []string{"hello world"}, got)
}

func TestPlan_EmptyOrWhitespaceReturnsEmpty(t *testing.T) {
	cfg := Config{MaxChars: 100, Overlap: 10}
	assert.Empty(t, Plan("", "txt", cfg, nil))
	assert.Empty(t, Plan("   \n\t  ", "txt", cfg, nil))
}

func TestPlan_ExactBoundary(t *testing.T) {
	cfg := Config{MaxChars: 10, Overlap: 2}
	text := strings.Repeat("a", 10)
	got := Plan(text, "txt", cfg, nil)
	require.Len(t, got, 1, "text exactly at max_chars is one chunk")

	text2 := strings.Repeat("a", 11)
	got2 := Plan(text2, "txt", cfg, nil)
	require.Len(t, got2, 2, "max_chars+1 splits into exactly two chunks")
}

func TestPlan_NewlineSnapBias(t *testing.T) {
	// 20 a's, newline, 20 b's. With maxChars=25 the window should snap to
	// the newline rather than cutting mid-run.
	text := strings.Repeat("a", 20) + "\n" + strings.Repeat("b", 20)
	cfg := Config{MaxChars: 25, Overlap: 0}
	got := Plan(text, "txt", cfg, nil)
	require.NotEmpty(t, got)
	assert.True(t, strings.HasSuffix(got[0], "\n"), "first chunk should end at the newline: %q", got[0])
}

func TestPlan_NoNewlineFallsThroughToFixedWindow(t *testing.T) {
	text := strings.Repeat("x", 50)
	cfg := Config{MaxChars: 10, Overlap: 2}
	got := Plan(text, "txt", cfg, nil)
	require.Greater(t, len(got), 1)
}

func TestPlan_JSONFormatTuning(t *testing.T) {
	cfg := Config{MaxChars: 4000, Overlap: 200}
	maxChars, overlap := effectiveBudget(cfg, "json")
	assert.Equal(t, 3000, maxChars) // floor(0.75*4000)
	assert.Equal(t, 200, overlap)   // min(200, 3000/4=750) = 200

	cfg2 := Config{MaxChars: 1000, Overlap: 500}
	maxChars2, overlap2 := effectiveBudget(cfg2, "xml")
	assert.Equal(t, minEffectiveMax, maxChars2) // floor(0.75*1000)=750 < 1500 floor
	assert.Equal(t, minEffectiveMax/4, overlap2)
}

func TestPlan_ReconstructsOriginalAfterStrippingOverlap(t *testing.T) {
	text := strings.Repeat("line one\n", 5) + strings.Repeat("line two\n", 5) + strings.Repeat("line three\n", 5)
	cfg := Config{MaxChars: 40, Overlap: 8}
	chunks := Plan(text, "txt", cfg, nil)
	require.Greater(t, len(chunks), 1)

	// Reconstruct by stripping, from each chunk but the first, its
	// overlap with the previous chunk's suffix.
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0])
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		cur := chunks[i]
		overlapLen := longestOverlap(prev, cur, cfg.Overlap)
		rebuilt.WriteString(cur[overlapLen:])
	}
	assert.Equal(t, text, rebuilt.String())
}

// longestOverlap returns the length of the longest suffix of a that is a
// prefix of b, considering at most limit bytes (limit <= 0 means no limit).
// The limit matters for repetitive text, where a longer coincidental match
// than the planner's real overlap can exist.
func longestOverlap(a, b string, limit int) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	if limit > 0 && limit < max {
		max = limit
	}
	for l := max; l > 0; l-- {
		if strings.HasSuffix(a, b[:l]) {
			return l
		}
	}
	return 0
}

func TestDeriveConfig(t *testing.T) {
	cfg := DeriveConfig(8000, 2048, 0)
	// charBudget = floor(0.8*2048)*4 = 1638*4 = 6552; min(8000,6552)=6552
	assert.Equal(t, 6552, cfg.MaxChars)
	assert.Equal(t, floorMul(6552, 0.05), cfg.Overlap)
}

func TestDeriveConfig_OverlapFloor(t *testing.T) {
	cfg := DeriveConfig(100, 128, 0)
	// charBudget = max(500, floor(0.8*128)*4) = max(500, 408) = 500; min(100,500)=100
	assert.Equal(t, 100, cfg.MaxChars)
	assert.Equal(t, minOverlap, cfg.Overlap, "overlap floor of 50 applies when 5%% of max_chars is smaller")
}

func TestGoDeclarationSnapHint_DegradesGracefullyOnGarbage(t *testing.T) {
	hint := GoDeclarationSnapHint()
	got := hint("not really go code {{{", 0, 5)
	assert.True(t, got == -1 || (got >= 0 && got < 5))
}
