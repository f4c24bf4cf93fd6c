package processor

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	validatorV10 "github.com/go-playground/validator/v10"
	"golang.org/x/image/colornames"
)

var validate = validatorV10.New()

// ParseColor accepts #rgb, #rgba, #rrggbb, #rrggbbaa and CSS color names.
func ParseColor(s string) (color.NRGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty value", ErrInvalidColor)
	}

	if !strings.HasPrefix(v, "#") {
		c, ok := colornames.Map[v]
		if !ok {
			return color.NRGBA{}, fmt.Errorf("%w: unknown color name %q", ErrInvalidColor, s)
		}
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}

	digits := v[1:]
	if err := validate.Var(digits, "hexadecimal,len=3|len=4|len=6|len=8"); err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	if len(digits) <= 4 {
		var b strings.Builder
		for _, r := range digits {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		digits = b.String()
	}
	if len(digits) == 6 {
		digits += "ff"
	}

	n, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{
		R: uint8(n >> 24),
		G: uint8(n >> 16),
		B: uint8(n >> 8),
		A: uint8(n),
	}, nil
}

// NormalizeColor returns the canonical notation of s, used to detect
// settings that did not actually change.
func NormalizeColor(s string) (string, error) {
	c, err := ParseColor(s)
	if err != nil {
		return "", err
	}
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A), nil
}
