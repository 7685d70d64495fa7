package core

import (
	"bytes"
	"compress/zlib"
	"strconv"
	"strings"
	"testing"
)

func TestXRefStreamDetection(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantStream bool
		wantError  bool
	}{
		{
			name:       "traditional xref",
			content:    "xref\n0 6\n",
			wantStream: false,
		},
		{
			name:       "xref stream",
			content:    "5 0 obj\n<</Type /XRef>>",
			wantStream: true,
		},
		{
			name:      "invalid format",
			content:   "invalid content",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewXRefParser(strings.NewReader(tt.content))
			isStream, err := parser.isXRefStream()

			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if isStream != tt.wantStream {
				t.Errorf("isXRefStream() = %v, want %v", isStream, tt.wantStream)
			}
		})
	}
}

func TestReadBigEndianInt(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		width int
		want  int64
	}{
		{"1 byte", []byte{0x42}, 1, 0x42},
		{"2 bytes", []byte{0x12, 0x34}, 2, 0x1234},
		{"3 bytes", []byte{0x12, 0x34, 0x56}, 3, 0x123456},
		{"4 bytes", []byte{0x00, 0x00, 0x10, 0x00}, 4, 4096},
		{"zero width", []byte{0xFF}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readBigEndianInt(tt.data, tt.width)
			if got != tt.want {
				t.Errorf("readBigEndianInt() = %d (0x%X), want %d (0x%X)",
					got, got, tt.want, tt.want)
			}
		})
	}
}

func TestParseXRefStreamEntry(t *testing.T) {
	parser := NewXRefParser(strings.NewReader(""))

	tests := []struct {
		name       string
		data       []byte
		w          []int
		wantType   XRefEntryType
		wantInUse  bool
		wantField1 int64
		wantField2 int
		wantBytes  int
		wantError  bool
	}{
		{
			name: "in-use entry (type 1)",
			// Type=1 (1 byte), Offset=4096 (2 bytes), Gen=0 (1 byte)
			data:       []byte{0x01, 0x10, 0x00, 0x00},
			w:          []int{1, 2, 1},
			wantType:   XRefEntryUncompressed,
			wantInUse:  true,
			wantField1: 4096,
			wantField2: 0,
			wantBytes:  4,
		},
		{
			name: "free entry (type 0)",
			// Type=0 (1 byte), NextFree=5 (2 bytes), Gen=3 (1 byte)
			data:       []byte{0x00, 0x00, 0x05, 0x03},
			w:          []int{1, 2, 1},
			wantType:   XRefEntryFree,
			wantField1: 5,
			wantField2: 3,
			wantBytes:  4,
		},
		{
			name: "object stream entry (type 2)",
			// Type=2 (1 byte), ObjStm=10 (2 bytes), Index=2 (1 byte)
			data:       []byte{0x02, 0x00, 0x0A, 0x02},
			w:          []int{1, 2, 1},
			wantType:   XRefEntryCompressed,
			wantInUse:  true,
			wantField1: 10,
			wantField2: 2,
			wantBytes:  4,
		},
		{
			name: "default type (width=0)",
			// No type field: defaults to in use.
			// Offset=1000 (2 bytes), Gen=0 (1 byte)
			data:       []byte{0x03, 0xE8, 0x00},
			w:          []int{0, 2, 1},
			wantType:   XRefEntryUncompressed,
			wantInUse:  true,
			wantField1: 1000,
			wantField2: 0,
			wantBytes:  3,
		},
		{
			name:      "insufficient data",
			data:      []byte{0x01},
			w:         []int{1, 2, 1},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, bytesRead, err := parser.parseXRefStreamEntry(tt.data, tt.w)

			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if bytesRead != tt.wantBytes {
				t.Errorf("bytesRead = %d, want %d", bytesRead, tt.wantBytes)
			}
			if entry.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", entry.Type, tt.wantType)
			}
			if entry.InUse != tt.wantInUse {
				t.Errorf("InUse = %v, want %v", entry.InUse, tt.wantInUse)
			}
			if entry.Offset != tt.wantField1 {
				t.Errorf("Offset = %d, want %d", entry.Offset, tt.wantField1)
			}
			if entry.Generation != tt.wantField2 {
				t.Errorf("Generation = %d, want %d", entry.Generation, tt.wantField2)
			}
		})
	}
}

// buildXRefStreamObject assembles a complete "N G obj ... endobj"
// xref stream with flate-compressed entry data.
func buildXRefStreamObject(t *testing.T, extraKeys string, entryData []byte) []byte {
	t.Helper()
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write(entryData); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	buf.WriteString("5 0 obj\n<</Type /XRef\n" + extraKeys +
		"  /Filter /FlateDecode\n" +
		"  /Length " + strconv.Itoa(compressed.Len()) + "\n>>\nstream\n")
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	return buf.Bytes()
}

func TestParseXRefStream(t *testing.T) {
	// W = [1 2 1]: type, offset, generation.
	entryData := []byte{
		0x00, 0x00, 0x00, 0xFF, // entry 0: free
		0x01, 0x00, 0x0F, 0x00, // entry 1: offset 15
		0x01, 0x00, 0x64, 0x00, // entry 2: offset 100
	}
	content := buildXRefStreamObject(t,
		"  /Size 3\n  /W [1 2 1]\n  /Root 1 0 R\n", entryData)

	parser := NewXRefParser(bytes.NewReader(content))
	table, err := parser.parseXRefStream()
	if err != nil {
		t.Fatalf("parseXRefStream() error = %v", err)
	}

	if !table.IsStream {
		t.Error("expected IsStream = true")
	}
	if table.Size() != 3 {
		t.Errorf("Size() = %d, want 3", table.Size())
	}

	entry0, ok := table.Get(0)
	if !ok || entry0.InUse {
		t.Errorf("entry 0 = %+v, want free", entry0)
	}
	entry1, ok := table.Get(1)
	if !ok || !entry1.InUse || entry1.Offset != 15 {
		t.Errorf("entry 1 = %+v, want offset 15", entry1)
	}
	entry2, ok := table.Get(2)
	if !ok || entry2.Offset != 100 {
		t.Errorf("entry 2 = %+v, want offset 100", entry2)
	}

	if table.Trailer == nil {
		t.Fatal("trailer is nil")
	}
	if root, ok := table.Trailer.GetIndirectRef("Root"); !ok || root.Number != 1 {
		t.Errorf("trailer Root = %v", table.Trailer.Get("Root"))
	}
}

func TestParseXRefStreamWithIndex(t *testing.T) {
	// Index [10 2 20 2]: entries 10-11 and 20-21.
	entryData := []byte{
		0x01, 0x00, 0x64, 0x00, // entry 10: offset 100
		0x01, 0x00, 0xC8, 0x00, // entry 11: offset 200
		0x01, 0x01, 0x2C, 0x00, // entry 20: offset 300
		0x01, 0x01, 0x90, 0x00, // entry 21: offset 400
	}
	content := buildXRefStreamObject(t,
		"  /Size 22\n  /Index [10 2 20 2]\n  /W [1 2 1]\n", entryData)

	parser := NewXRefParser(bytes.NewReader(content))
	table, err := parser.parseXRefStream()
	if err != nil {
		t.Fatalf("parseXRefStream() error = %v", err)
	}

	if table.Size() != 4 {
		t.Errorf("Size() = %d, want 4", table.Size())
	}
	wantOffsets := map[int]int64{10: 100, 11: 200, 20: 300, 21: 400}
	for num, wantOffset := range wantOffsets {
		entry, ok := table.Get(num)
		if !ok {
			t.Errorf("entry %d not found", num)
			continue
		}
		if entry.Offset != wantOffset {
			t.Errorf("entry %d offset = %d, want %d", num, entry.Offset, wantOffset)
		}
	}
	if _, ok := table.Get(0); ok {
		t.Error("entry 0 should not exist")
	}
	if _, ok := table.Get(15); ok {
		t.Error("entry 15 should not exist")
	}
}

func TestParseXRefStreamCompressedEntries(t *testing.T) {
	// Type 2 entries point into an object stream: field1 is the
	// container number, field2 the index within it.
	entryData := []byte{
		0x02, 0x00, 0x07, 0x00, // entry 3: objstm 7, index 0
		0x02, 0x00, 0x07, 0x01, // entry 4: objstm 7, index 1
	}
	content := buildXRefStreamObject(t,
		"  /Size 5\n  /Index [3 2]\n  /W [1 2 1]\n", entryData)

	parser := NewXRefParser(bytes.NewReader(content))
	table, err := parser.parseXRefStream()
	if err != nil {
		t.Fatalf("parseXRefStream() error = %v", err)
	}

	entry, ok := table.Get(4)
	if !ok {
		t.Fatal("entry 4 not found")
	}
	if entry.Type != XRefEntryCompressed {
		t.Errorf("Type = %v, want compressed", entry.Type)
	}
	if entry.Offset != 7 || entry.Generation != 1 {
		t.Errorf("entry 4 = %+v, want container 7 index 1", entry)
	}
}

func TestXRefStreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing /Type",
			content: "5 0 obj\n<</Length 0>>\nstream\nendstream\nendobj\n",
		},
		{
			name:    "wrong /Type",
			content: "5 0 obj\n<</Type /Page /Length 0>>\nstream\nendstream\nendobj\n",
		},
		{
			name:    "missing /Size",
			content: "5 0 obj\n<</Type /XRef /Length 0>>\nstream\nendstream\nendobj\n",
		},
		{
			name: "missing /W",
			content: "5 0 obj\n<</Type /XRef\n  /Size 10 /Length 0\n>>\n" +
				"stream\nendstream\nendobj\n",
		},
		{
			name: "invalid /W length",
			content: "5 0 obj\n<</Type /XRef\n  /Size 10\n  /W [1 2] /Length 0\n>>\n" +
				"stream\nendstream\nendobj\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewXRefParser(strings.NewReader(tt.content))
			if _, err := parser.parseXRefStream(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestXRefDispatch(t *testing.T) {
	t.Run("traditional table", func(t *testing.T) {
		content := "xref\n" +
			"0 1\n" +
			"0000000000 65535 f \n" +
			"trailer\n" +
			"<</Size 1>>\n"

		parser := NewXRefParser(strings.NewReader(content))
		table, err := parser.ParseXRef(0)
		if err != nil {
			t.Fatalf("ParseXRef() error = %v", err)
		}
		if table.IsStream {
			t.Error("expected traditional table, got stream")
		}
	})

	t.Run("xref stream", func(t *testing.T) {
		entryData := []byte{0x00, 0x00, 0x00, 0xFF}
		content := buildXRefStreamObject(t, "  /Size 1\n  /W [1 2 1]\n", entryData)

		parser := NewXRefParser(bytes.NewReader(content))
		table, err := parser.ParseXRef(0)
		if err != nil {
			t.Fatalf("ParseXRef() error = %v", err)
		}
		if !table.IsStream {
			t.Error("expected xref stream, got traditional table")
		}
	})
}
