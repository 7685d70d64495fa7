package filters

import (
	"bytes"
	"fmt"
)

// ASCIIHexDecode decodes pairs of hexadecimal digits into bytes.
// Whitespace is ignored, > ends the data, and an odd final digit is
// padded with zero. An invalid character returns the bytes decoded
// before it.
func ASCIIHexDecode(data []byte, _ Params) ([]byte, error) {
	var out bytes.Buffer
	var hi byte
	haveHi := false

	for _, c := range data {
		if isWhitespace(c) {
			continue
		}
		if c == '>' {
			break
		}
		v, ok := hexDigit(c)
		if !ok {
			return out.Bytes(), fmt.Errorf("asciihex: invalid character %q", c)
		}
		if haveHi {
			out.WriteByte(hi<<4 | v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
	if haveHi {
		out.WriteByte(hi << 4)
	}
	return out.Bytes(), nil
}

// ASCII85Decode decodes base-85 data: five characters in !..u encode
// four bytes, z abbreviates four zero bytes, and ~> ends the data. A
// final partial group of n characters yields n-1 bytes.
func ASCII85Decode(data []byte, _ Params) ([]byte, error) {
	var out bytes.Buffer

	group := make([]byte, 0, 5)
	flush := func() {
		// A partial group is padded with u, the highest digit, and
		// the padding bytes are discarded from the output.
		n := len(group)
		if n < 2 {
			return
		}
		for len(group) < 5 {
			group = append(group, 84)
		}
		var v uint32
		for _, d := range group {
			v = v*85 + uint32(d)
		}
		for j := 0; j < n-1; j++ {
			out.WriteByte(byte(v >> (24 - j*8)))
		}
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case isWhitespace(c):
			i++
		case c == '~':
			// EOD marker ~>
			flush()
			return out.Bytes(), nil
		case c == 'z' && len(group) == 0:
			out.Write([]byte{0, 0, 0, 0})
			i++
		case c >= '!' && c <= 'u':
			group = append(group, c-'!')
			i++
			if len(group) == 5 {
				var v uint32
				for _, d := range group {
					v = v*85 + uint32(d)
				}
				out.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
				group = group[:0]
			}
		default:
			return out.Bytes(), fmt.Errorf("ascii85: invalid character %q", c)
		}
	}
	if len(group) == 1 {
		return out.Bytes(), fmt.Errorf("ascii85: dangling final digit")
	}
	flush()
	return out.Bytes(), nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// isWhitespace reports whether c is PDF whitespace.
func isWhitespace(c byte) bool {
	switch c {
	case 0x00, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}
