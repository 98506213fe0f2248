package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Color is a raw RGB value persisted as "#RRGGBB".
type Color struct {
	R, G, B uint8
}

// DefaultColor is used when a persisted color cannot be parsed.
var DefaultColor = Color{R: 0x00, G: 0x7A, B: 0xFF}

// ParseColor accepts "#RRGGBB" or "RRGGBB".
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, ErrInvalidColor
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, ErrInvalidColor
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ColorOrDefault never fails.
func ColorOrDefault(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		return DefaultColor
	}
	return c
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Hex() }

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
