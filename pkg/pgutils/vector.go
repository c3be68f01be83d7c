// Package pgutils provides PostgreSQL utility functions for the Go server.
package pgutils

import "strconv"

// FormatVector renders a float32 slice as a pgvector literal, e.g.
// []float32{0.1, 0.2} -> "[0.1,0.2]". The output is passed as a
// parameter with a ::vector cast, never interpolated into SQL.
func FormatVector(v []float32) string {
	buf := make([]byte, 0, len(v)*12+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'f', -1, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}
