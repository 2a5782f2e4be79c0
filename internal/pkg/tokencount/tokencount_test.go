package tokencount_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abundance-ai/abundance/internal/pkg/tokencount"
)

func TestEstimate(t *testing.T) {
	require.EqualValues(t, 0, tokencount.Estimate(""))
	require.EqualValues(t, 0, tokencount.Estimate("   \n\t"))
	require.EqualValues(t, 2, tokencount.Estimate("Hi"))
	require.EqualValues(t, 3, tokencount.Estimate("Hello there"))
	require.EqualValues(t, 5, tokencount.Estimate("from your own notes"))
}

func TestEstimateCountsNonASCIIRunes(t *testing.T) {
	// Two CJK runes, one field, plus framing.
	require.EqualValues(t, 4, tokencount.Estimate("你好"))
}

func TestEstimateAll(t *testing.T) {
	texts := []string{"Hi", "Hello there"}
	require.EqualValues(t, 5, tokencount.EstimateAll(texts))
	require.EqualValues(t, 0, tokencount.EstimateAll(nil))
}
