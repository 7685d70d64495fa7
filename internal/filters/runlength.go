package filters

import (
	"bytes"
	"fmt"
)

// RunLengthDecode expands PDF run-length data: a length byte L < 128
// is followed by L+1 literal bytes, L in 129..255 repeats the next
// byte 257-L times, and 128 marks end of data. A payload that simply
// runs out without the EOD byte is accepted.
func RunLengthDecode(data []byte, _ Params) ([]byte, error) {
	var out bytes.Buffer

	i := 0
	for i < len(data) {
		l := data[i]
		i++
		if l == 128 {
			return out.Bytes(), nil
		}
		if l < 128 {
			count := int(l) + 1
			if i+count > len(data) {
				out.Write(data[i:])
				return out.Bytes(), fmt.Errorf("runlength: literal run past end of data")
			}
			out.Write(data[i : i+count])
			i += count
			continue
		}
		if i >= len(data) {
			return out.Bytes(), fmt.Errorf("runlength: repeat run past end of data")
		}
		out.Write(bytes.Repeat(data[i:i+1], 257-int(l)))
		i++
	}
	return out.Bytes(), nil
}
