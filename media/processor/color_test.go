package processor

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ffffff", color.NRGBA{255, 255, 255, 255}},
		{"#FFF", color.NRGBA{255, 255, 255, 255}},
		{"#000", color.NRGBA{0, 0, 0, 255}},
		{"#1a2b3c", color.NRGBA{0x1a, 0x2b, 0x3c, 255}},
		{"#f008", color.NRGBA{255, 0, 0, 0x88}},
		{"#11223344", color.NRGBA{0x11, 0x22, 0x33, 0x44}},
		{"black", color.NRGBA{0, 0, 0, 255}},
		{" Tomato ", color.NRGBA{255, 99, 71, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseColorRejects(t *testing.T) {
	for _, in := range []string{"", "#", "#ff", "#fffff", "#gggggg", "#0x12", "not-a-color", "rgb(1,2,3)"} {
		_, err := ParseColor(in)
		assert.ErrorIs(t, err, ErrInvalidColor, "input %q", in)
	}
}

func TestNormalizeColor(t *testing.T) {
	got, err := NormalizeColor("#FFF")
	require.NoError(t, err)
	assert.Equal(t, "#ffffff", got)

	got, err = NormalizeColor("white")
	require.NoError(t, err)
	assert.Equal(t, "#ffffff", got)

	got, err = NormalizeColor("#0000ff80")
	require.NoError(t, err)
	assert.Equal(t, "#0000ff80", got)

	_, err = NormalizeColor("nope")
	assert.Error(t, err)
}
