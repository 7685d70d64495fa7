package filters

import (
	"bytes"
	"testing"

	"github.com/hhrutter/lzw"
)

func lzwCompress(t *testing.T, data []byte, earlyChange bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, earlyChange)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestLZWDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("Hello, World!"),
		bytes.Repeat([]byte("abcabc"), 500),
		{0x00, 0xFF, 0x00, 0xFF},
	}

	for _, payload := range payloads {
		got, err := LZWDecode(lzwCompress(t, payload, true), nil)
		if err != nil {
			t.Fatalf("LZWDecode() error = %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("round trip lost data: got %d bytes, want %d", len(got), len(payload))
		}
	}
}

func TestLZWDecodeEarlyChangeOff(t *testing.T) {
	payload := bytes.Repeat([]byte("pattern"), 100)
	compressed := lzwCompress(t, payload, false)

	got, err := LZWDecode(compressed, Params{"EarlyChange": 0})
	if err != nil {
		t.Fatalf("LZWDecode() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("round trip with EarlyChange 0 lost data")
	}
}

func TestLZWDecodeWithPredictor(t *testing.T) {
	filtered := []byte{
		1, 10, 10, 10,
		2, 1, 1, 1,
	}
	params := Params{
		"Predictor": 10,
		"Columns":   3,
	}
	got, err := LZWDecode(lzwCompress(t, filtered, true), params)
	if err != nil {
		t.Fatalf("LZWDecode() error = %v", err)
	}
	want := []byte{10, 20, 30, 11, 21, 31}
	if !bytes.Equal(got, want) {
		t.Errorf("LZWDecode() = %v, want %v", got, want)
	}
}
