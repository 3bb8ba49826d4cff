package bluetooth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBoundName(t *testing.T) {
	assert.Equal(t, "Headset", BoundName("Headset"))

	long := strings.Repeat("a", 100)
	assert.Len(t, BoundName(long), DevNameMaxLen-1)

	// "é" is two bytes; 62 ASCII bytes followed by it would straddle the bound.
	straddle := strings.Repeat("a", 62) + "é"
	assert.Equal(t, strings.Repeat("a", 62), BoundName(straddle))
}

func TestMatchesName(t *testing.T) {
	dev := DeviceData{Name: "WI-XB400"}

	assert.True(t, dev.MatchesName("WI-XB400"))
	assert.True(t, dev.MatchesName("WI"))
	assert.False(t, dev.MatchesName("WI-XB4000"))
	assert.False(t, dev.MatchesName(""))
}

func TestTriState(t *testing.T) {
	assert.Equal(t, Yes, TriStateOf(true))
	assert.Equal(t, No, TriStateOf(false))
	assert.Equal(t, "unknown", Unknown.String())
}

func TestNormalizeScanTimeout(t *testing.T) {
	assert.Equal(t, MinScanTimeout, NormalizeScanTimeout(0))
	assert.Equal(t, MinScanTimeout, NormalizeScanTimeout(-time.Second))
	assert.Equal(t, 3*time.Second, NormalizeScanTimeout(3*time.Second))
}
