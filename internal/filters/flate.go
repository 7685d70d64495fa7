package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// FlateDecode decompresses zlib/deflate data, the workhorse filter of
// modern PDF producers, then applies any configured predictor. A
// truncated payload returns the bytes inflated so far together with
// the error.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib header: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return buf.Bytes(), fmt.Errorf("inflate: %w", err)
	}
	return ApplyPredictor(buf.Bytes(), params)
}
