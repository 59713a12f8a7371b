package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Mask is a row-major binary raster encoded as nested JSON arrays
// (height rows of width values). Pix holds 0 or 1 per pixel.
// When Bool is set, values are written as true/false instead of 0/1.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
	Bool   bool
}

// Labels is a row-major label image; 0 is background and i>0 is instance i.
type Labels struct {
	Width  int
	Height int
	Pix    []uint16
}

// At returns the mask value at (x, y).
func (m Mask) At(x, y int) uint8 { return m.Pix[y*m.Width+x] }

// Area counts foreground pixels.
func (m Mask) Area() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

func (m Mask) MarshalJSON() ([]byte, error) {
	if len(m.Pix) != m.Width*m.Height {
		return nil, fmt.Errorf("mask: %d pixels for %dx%d", len(m.Pix), m.Width, m.Height)
	}
	var buf bytes.Buffer
	buf.Grow(m.Width*m.Height*2 + m.Height*3 + 2)
	buf.WriteByte('[')
	for y := 0; y < m.Height; y++ {
		if y > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if x > 0 {
				buf.WriteByte(',')
			}
			switch {
			case m.Bool && v != 0:
				buf.WriteString("true")
			case m.Bool:
				buf.WriteString("false")
			case v != 0:
				buf.WriteByte('1')
			default:
				buf.WriteByte('0')
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (m *Mask) UnmarshalJSON(b []byte) error {
	rows, err := decodeRows(b)
	if err != nil {
		return fmt.Errorf("mask: %w", err)
	}
	m.Height = len(rows)
	m.Width = 0
	if m.Height > 0 {
		m.Width = len(rows[0])
	}
	m.Pix = make([]uint8, 0, m.Width*m.Height)
	m.Bool = false
	for y, row := range rows {
		if len(row) != m.Width {
			return fmt.Errorf("mask: row %d has %d values, want %d", y, len(row), m.Width)
		}
		for _, v := range row {
			switch tv := v.(type) {
			case bool:
				m.Bool = true
				if tv {
					m.Pix = append(m.Pix, 1)
				} else {
					m.Pix = append(m.Pix, 0)
				}
			case json.Number:
				f, err := tv.Float64()
				if err != nil {
					return fmt.Errorf("mask: %w", err)
				}
				if f > 0.5 {
					m.Pix = append(m.Pix, 1)
				} else {
					m.Pix = append(m.Pix, 0)
				}
			default:
				return fmt.Errorf("mask: unexpected value %v", v)
			}
		}
	}
	return nil
}

func (l Labels) MarshalJSON() ([]byte, error) {
	if len(l.Pix) != l.Width*l.Height {
		return nil, fmt.Errorf("labels: %d pixels for %dx%d", len(l.Pix), l.Width, l.Height)
	}
	var buf bytes.Buffer
	buf.Grow(l.Width*l.Height*2 + l.Height*3 + 2)
	var num [8]byte
	buf.WriteByte('[')
	for y := 0; y < l.Height; y++ {
		if y > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for x, v := range l.Pix[y*l.Width : (y+1)*l.Width] {
			if x > 0 {
				buf.WriteByte(',')
			}
			buf.Write(strconv.AppendUint(num[:0], uint64(v), 10))
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (l *Labels) UnmarshalJSON(b []byte) error {
	rows, err := decodeRows(b)
	if err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	l.Height = len(rows)
	l.Width = 0
	if l.Height > 0 {
		l.Width = len(rows[0])
	}
	l.Pix = make([]uint16, 0, l.Width*l.Height)
	for y, row := range rows {
		if len(row) != l.Width {
			return fmt.Errorf("labels: row %d has %d values, want %d", y, len(row), l.Width)
		}
		for _, v := range row {
			n, ok := v.(json.Number)
			if !ok {
				return fmt.Errorf("labels: unexpected value %v", v)
			}
			u, err := strconv.ParseUint(n.String(), 10, 16)
			if err != nil {
				return fmt.Errorf("labels: %w", err)
			}
			l.Pix = append(l.Pix, uint16(u))
		}
	}
	return nil
}

func decodeRows(b []byte) ([][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
