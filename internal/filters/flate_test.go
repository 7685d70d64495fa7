package filters

import (
	"bytes"
	"compress/zlib"
	"testing"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestFlateDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("Hello, World!"),
		bytes.Repeat([]byte{0xAB}, 10000),
	}

	for _, payload := range payloads {
		got, err := FlateDecode(zlibCompress(t, payload), nil)
		if err != nil {
			t.Fatalf("FlateDecode() error = %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("round trip lost data: got %d bytes, want %d", len(got), len(payload))
		}
	}
}

func TestFlateDecodeInvalidHeader(t *testing.T) {
	if _, err := FlateDecode([]byte("not zlib data"), nil); err == nil {
		t.Error("expected error for invalid zlib data")
	}
}

func TestFlateDecodeWithPNGPredictor(t *testing.T) {
	// Two rows of three 8-bit samples. Row one uses the Sub filter,
	// row two the Up filter; the tag byte leads each row.
	want := []byte{
		10, 20, 30,
		11, 21, 31,
	}
	filtered := []byte{
		1, 10, 10, 10, // Sub: 10, 10+10, 20+10
		2, 1, 1, 1, // Up: 10+1, 20+1, 30+1
	}

	params := Params{
		"Predictor": 12,
		"Columns":   3,
	}
	got, err := FlateDecode(zlibCompress(t, filtered), params)
	if err != nil {
		t.Fatalf("FlateDecode() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("FlateDecode() = %v, want %v", got, want)
	}
}

func TestFlateDecodeWithTIFFPredictor(t *testing.T) {
	// Horizontal differencing over one row of four samples.
	params := Params{
		"Predictor": 2,
		"Columns":   4,
	}
	got, err := FlateDecode(zlibCompress(t, []byte{1, 1, 1, 1}), params)
	if err != nil {
		t.Fatalf("FlateDecode() error = %v", err)
	}
	want := []byte{1, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Errorf("FlateDecode() = %v, want %v", got, want)
	}
}

func TestPNGPredictorPaethRow(t *testing.T) {
	// One Paeth-filtered row after a known first row. With a zero
	// prior row Paeth degenerates to Sub on the first row, so use
	// two rows to exercise the neighbor selection.
	filtered := []byte{
		0, 100, 50, // None: raw bytes
		4, 5, 5, // Paeth
	}
	got, err := pngPredictor(filtered, 2, 1)
	if err != nil {
		t.Fatalf("pngPredictor() error = %v", err)
	}
	// Row 2, byte 1: left=0, up=100, upLeft=0 -> paeth picks up
	// (100); 5+100=105. Byte 2: left=105, up=50, upLeft=100 ->
	// p=55, pa=50, pb=5, pc=45 -> picks up (50); 5+50=55.
	want := []byte{100, 50, 105, 55}
	if !bytes.Equal(got, want) {
		t.Errorf("pngPredictor() = %v, want %v", got, want)
	}
}

func TestPaethPredictor(t *testing.T) {
	tests := []struct {
		a, b, c byte
		want    byte
	}{
		{0, 0, 0, 0},
		{10, 20, 10, 20},  // pb smallest
		{20, 10, 10, 20},  // pa smallest
		{10, 20, 30, 10},  // tie between a and b goes to a
		{100, 50, 100, 50}, // up is nearest the prediction
	}
	for _, tt := range tests {
		if got := paeth(tt.a, tt.b, tt.c); got != tt.want {
			t.Errorf("paeth(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.c, got, tt.want)
		}
	}
}

func TestPNGPredictorUnknownTag(t *testing.T) {
	if _, err := pngPredictor([]byte{9, 1, 2, 3}, 3, 1); err == nil {
		t.Error("expected error for unknown row tag")
	}
}
