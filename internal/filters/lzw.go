package filters

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"
)

// LZWDecode decompresses LZW data with PDF semantics: MSB-first codes
// and the EarlyChange code-width bump (on by default), then applies
// any configured predictor. Legacy producers still emit LZW even
// though Flate replaced it decades ago.
func LZWDecode(data []byte, params Params) ([]byte, error) {
	earlyChange := params.Int("EarlyChange", 1) == 1

	reader := lzw.NewReader(bytes.NewReader(data), earlyChange)
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return buf.Bytes(), fmt.Errorf("lzw: %w", err)
	}
	return ApplyPredictor(buf.Bytes(), params)
}
