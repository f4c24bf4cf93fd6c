package fit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDrawRect_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		tgtW, tgtH int
		mode       Mode
		want       DrawRect
	}{
		{
			name: "wide source to square cover",
			srcW: 2000, srcH: 1000, tgtW: 1080, tgtH: 1080, mode: Cover,
			want: DrawRect{Width: 2160, Height: 1080, X: -540, Y: 0},
		},
		{
			name: "wide source to square contain",
			srcW: 2000, srcH: 1000, tgtW: 1080, tgtH: 1080, mode: Contain,
			want: DrawRect{Width: 1080, Height: 540, X: 0, Y: 270},
		},
		{
			name: "square source to vertical cover",
			srcW: 500, srcH: 500, tgtW: 1080, tgtH: 1350, mode: Cover,
			want: DrawRect{Width: 1350, Height: 1350, X: -135, Y: 0},
		},
		{
			name: "square source to vertical contain",
			srcW: 500, srcH: 500, tgtW: 1080, tgtH: 1350, mode: Contain,
			want: DrawRect{Width: 1080, Height: 1080, X: 0, Y: 135},
		},
		{
			name: "matching aspect fills exactly",
			srcW: 540, srcH: 960, tgtW: 1080, tgtH: 1920, mode: Cover,
			want: DrawRect{Width: 1080, Height: 1920, X: 0, Y: 0},
		},
		{
			name: "thin column to square cover",
			srcW: 1, srcH: 1000, tgtW: 1080, tgtH: 1080, mode: Cover,
			want: DrawRect{Width: 1080, Height: 1080000, X: 0, Y: -539460},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDrawRect(tt.srcW, tt.srcH, tt.tgtW, tt.tgtH, tt.mode)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Width, got.Width, 1e-9)
			assert.InDelta(t, tt.want.Height, got.Height, 1e-9)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestComputeDrawRect_Properties(t *testing.T) {
	sources := [][2]int{
		{1, 1}, {1, 1000}, {1000, 1}, {3, 7}, {640, 480}, {480, 640},
		{1080, 1350}, {4032, 3024}, {2999, 1001}, {1079, 1921}, {7, 3},
	}
	targets := [][2]int{{1080, 1080}, {1080, 1350}, {1080, 1920}}

	for _, src := range sources {
		for _, tgt := range targets {
			tw, th := float64(tgt[0]), float64(tgt[1])
			srcAspect := float64(src[0]) / float64(src[1])

			contain, err := ComputeDrawRect(src[0], src[1], tgt[0], tgt[1], Contain)
			require.NoError(t, err)
			assert.LessOrEqual(t, contain.Width, tw, "contain width for %v into %v", src, tgt)
			assert.LessOrEqual(t, contain.Height, th, "contain height for %v into %v", src, tgt)

			cover, err := ComputeDrawRect(src[0], src[1], tgt[0], tgt[1], Cover)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, cover.Width, tw, "cover width for %v into %v", src, tgt)
			assert.GreaterOrEqual(t, cover.Height, th, "cover height for %v into %v", src, tgt)

			for _, r := range []DrawRect{contain, cover} {
				assert.InEpsilon(t, srcAspect, r.Width/r.Height, 1e-3, "aspect for %v into %v", src, tgt)
				assert.Equal(t, (tw-r.Width)/2, r.X)
				assert.Equal(t, (th-r.Height)/2, r.Y)
			}
		}
	}
}

func TestComputeDrawRect_Deterministic(t *testing.T) {
	first, err := ComputeDrawRect(2999, 1001, 1080, 1350, Cover)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := ComputeDrawRect(2999, 1001, 1080, 1350, Cover)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestComputeDrawRect_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, tgtW, tgtH int
		mode                   Mode
		want                   error
	}{
		{"zero source width", 0, 10, 1080, 1080, Cover, ErrInvalidDimensions},
		{"negative source height", 10, -1, 1080, 1080, Contain, ErrInvalidDimensions},
		{"zero target", 10, 10, 0, 1080, Cover, ErrInvalidDimensions},
		{"unknown mode", 10, 10, 1080, 1080, Mode("fill"), ErrUnknownMode},
		{"empty mode", 10, 10, 1080, 1080, Mode(""), ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rect, err := ComputeDrawRect(tt.srcW, tt.srcH, tt.tgtW, tt.tgtH, tt.mode)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, DrawRect{}, rect)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Contain ")
	require.NoError(t, err)
	assert.Equal(t, Contain, m)

	m, err = ParseMode("cover")
	require.NoError(t, err)
	assert.Equal(t, Cover, m)

	_, err = ParseMode("stretch")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestDrawRectScale(t *testing.T) {
	rect, err := ComputeDrawRect(2000, 1000, 1080, 1080, Contain)
	require.NoError(t, err)
	assert.InDelta(t, 0.54, rect.Scale(2000), 1e-12)
}
