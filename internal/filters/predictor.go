package filters

import (
	"fmt"
)

// ApplyPredictor undoes the predictor transform that Flate and LZW
// payloads may carry. Predictor 1 is the identity, 2 is TIFF
// horizontal differencing, and 10-15 are the PNG row filters (the
// per-row tag byte decides the actual algorithm, so all six values
// decode identically).
func ApplyPredictor(data []byte, params Params) ([]byte, error) {
	predictor := params.Int("Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}

	columns := params.Int("Columns", 1)
	colors := params.Int("Colors", 1)
	bpc := params.Int("BitsPerComponent", 8)
	if columns < 1 || colors < 1 || bpc < 1 {
		return data, fmt.Errorf("predictor: invalid geometry columns=%d colors=%d bpc=%d", columns, colors, bpc)
	}

	rowSize := (columns*colors*bpc + 7) / 8
	bytesPerPixel := (colors*bpc + 7) / 8
	if bytesPerPixel < 1 {
		bytesPerPixel = 1
	}

	switch {
	case predictor == 2:
		return tiffPredictor(data, rowSize, colors, bpc)
	case predictor >= 10 && predictor <= 15:
		return pngPredictor(data, rowSize, bytesPerPixel)
	}
	return data, fmt.Errorf("predictor: unsupported value %d", predictor)
}

// tiffPredictor undoes TIFF horizontal differencing. Sub-byte sample
// sizes are rare enough in the wild that only 8-bit components are
// handled; other depths pass through untouched rather than corrupting
// the data with a wrong guess.
func tiffPredictor(data []byte, rowSize, colors, bpc int) ([]byte, error) {
	if bpc != 8 {
		return data, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	for rowStart := 0; rowStart < len(out); rowStart += rowSize {
		end := rowStart + rowSize
		if end > len(out) {
			end = len(out)
		}
		for i := rowStart + colors; i < end; i++ {
			out[i] += out[i-colors]
		}
	}
	return out, nil
}

// pngPredictor undoes the PNG row filters: each row is one tag byte
// followed by rowSize filtered bytes. A short final row is decoded as
// far as it goes.
func pngPredictor(data []byte, rowSize, bytesPerPixel int) ([]byte, error) {
	out := make([]byte, 0, len(data))
	prev := make([]byte, rowSize)

	pos := 0
	for pos < len(data) {
		tag := data[pos]
		pos++

		n := rowSize
		if pos+n > len(data) {
			n = len(data) - pos
		}
		row := make([]byte, n)
		copy(row, data[pos:pos+n])
		pos += n

		switch tag {
		case 0: // None
		case 1: // Sub
			for i := bytesPerPixel; i < n; i++ {
				row[i] += row[i-bytesPerPixel]
			}
		case 2: // Up
			for i := 0; i < n; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < n; i++ {
				var left byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < n; i++ {
				var left, upLeft byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
					upLeft = prev[i-bytesPerPixel]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return out, fmt.Errorf("predictor: unknown PNG row tag %d", tag)
		}

		out = append(out, row...)
		copy(prev, row)
		for i := n; i < rowSize; i++ {
			prev[i] = 0
		}
	}
	return out, nil
}

// paeth picks the neighbor (left, above, upper-left) closest to the
// linear prediction, per the PNG specification.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
