package main

import (
	"fmt"
	"strconv"
	"strings"

	"segd/pkg/types"
)

// parseFloats parses a comma-separated list of exactly n numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// pointPrompt builds one prompt from foreground and background points.
func pointPrompt(pos, neg []string) (types.PointPrompt, error) {
	var p types.PointPrompt
	if len(pos) == 0 {
		return p, fmt.Errorf("at least one --point is required")
	}
	add := func(s string, label int) error {
		xy, err := parseFloats(s, 2)
		if err != nil {
			return err
		}
		p.PointCoords = append(p.PointCoords, xy)
		p.PointLabels = append(p.PointLabels, label)
		return nil
	}
	for _, s := range pos {
		if err := add(s, 1); err != nil {
			return p, fmt.Errorf("--point: %w", err)
		}
	}
	for _, s := range neg {
		if err := add(s, 0); err != nil {
			return p, fmt.Errorf("--neg: %w", err)
		}
	}
	return p, nil
}
