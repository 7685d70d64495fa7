package core

import (
	"bytes"
	"io"
	"regexp"
)

// xrefObjHeader matches the start of an indirect object definition,
// which is how an xref stream announces itself (PDF 1.5+): the table
// is the payload of an ordinary "N G obj" stream object.
var xrefObjHeader = regexp.MustCompile(`^\d+\s+\d+\s+obj\b`)

// isXRefStream peeks at the reader's current position and reports
// whether a traditional table (the xref keyword) or an xref stream
// (an object header) starts there. The read position is restored.
func (x *XRefParser) isXRefStream() (bool, error) {
	pos, err := x.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, &XRefError{Msg: "seek failed", Err: err}
	}
	head := make([]byte, 64)
	n, _ := io.ReadFull(x.r, head)
	if _, err := x.r.Seek(pos, io.SeekStart); err != nil {
		return false, &XRefError{Msg: "seek failed", Err: err}
	}

	trimmed := bytes.TrimLeft(head[:n], "\x00\t\n\f\r ")
	if bytes.HasPrefix(trimmed, []byte("xref")) {
		return false, nil
	}
	if xrefObjHeader.Match(trimmed) {
		return true, nil
	}
	return false, &XRefError{Msg: "no cross-reference structure at offset"}
}

// readBigEndianInt reads a big-endian unsigned integer of the given
// byte width. Width zero yields zero, which lets absent W fields fall
// through to their defaults.
func readBigEndianInt(data []byte, width int) int64 {
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(data[i])
	}
	return v
}

// parseXRefStreamEntry decodes one entry of w[0]+w[1]+w[2] bytes.
// Entry types: 0 free, 1 uncompressed at byte offset, 2 compressed
// inside an object stream. When w[0] is zero the type defaults to 1.
// Returns the entry and the number of bytes consumed.
func (x *XRefParser) parseXRefStreamEntry(data []byte, w []int) (*XRefEntry, int, error) {
	total := w[0] + w[1] + w[2]
	if len(data) < total {
		return nil, 0, &XRefError{Msg: "truncated xref stream entry"}
	}

	entryType := int64(1)
	if w[0] > 0 {
		entryType = readBigEndianInt(data, w[0])
	}
	field1 := readBigEndianInt(data[w[0]:], w[1])
	field2 := readBigEndianInt(data[w[0]+w[1]:], w[2])

	entry := &XRefEntry{Offset: field1, Generation: int(field2)}
	switch entryType {
	case 0:
		entry.Type = XRefEntryFree
	case 1:
		entry.Type = XRefEntryUncompressed
		entry.InUse = true
	case 2:
		// Offset carries the container object-stream number and
		// Generation the index within it.
		entry.Type = XRefEntryCompressed
		entry.InUse = true
	default:
		// Unknown entry types read as free, which is the PDF
		// specification's forward-compatibility rule.
		entry.Type = XRefEntryFree
	}
	return entry, total, nil
}

// parseXRefStream parses an xref stream at the reader's current
// position: an indirect stream object whose decoded payload holds
// fixed-width entries described by /W, grouped into subsections by
// /Index (defaulting to a single run starting at object 0).
func (x *XRefParser) parseXRefStream() (*XRefTable, error) {
	parser := NewParser(x.r)
	indirect, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, &XRefError{Msg: "parsing xref stream object", Err: err}
	}
	stream, ok := indirect.Object.(*Stream)
	if !ok {
		return nil, &XRefError{Msg: "xref stream object is not a stream"}
	}

	if typ, _ := stream.Dict.GetName("Type"); typ != "XRef" {
		return nil, &XRefError{Msg: "xref stream has wrong /Type"}
	}
	size, ok := stream.Dict.GetInt("Size")
	if !ok {
		return nil, &XRefError{Msg: "xref stream missing /Size"}
	}
	w, err := xrefStreamWidths(stream.Dict)
	if err != nil {
		return nil, err
	}
	index, err := xrefStreamIndex(stream.Dict, size)
	if err != nil {
		return nil, err
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, &XRefError{Msg: "decoding xref stream payload", Err: err}
	}

	table := NewXRefTable()
	table.IsStream = true
	table.Trailer = stream.Dict

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for num := start; num < start+count; num++ {
			if pos >= len(data) {
				// Short payloads lose trailing entries; keep the
				// ones already decoded.
				return table, nil
			}
			entry, consumed, err := x.parseXRefStreamEntry(data[pos:], w)
			if err != nil {
				return table, nil
			}
			pos += consumed
			table.Set(num, entry)
		}
	}
	return table, nil
}

// xrefStreamWidths validates and extracts the /W array.
func xrefStreamWidths(dict Dict) ([]int, error) {
	arr, ok := dict.GetArray("W")
	if !ok {
		return nil, &XRefError{Msg: "xref stream missing /W"}
	}
	if len(arr) != 3 {
		return nil, &XRefError{Msg: "xref stream /W must have three elements"}
	}
	w := make([]int, 3)
	for i, obj := range arr {
		n, ok := obj.(Int)
		if !ok || n < 0 || n > 8 {
			return nil, &XRefError{Msg: "xref stream /W has invalid width"}
		}
		w[i] = int(n)
	}
	return w, nil
}

// xrefStreamIndex extracts the /Index subsection pairs, defaulting to
// [0 Size].
func xrefStreamIndex(dict Dict, size int64) ([]int, error) {
	arr, ok := dict.GetArray("Index")
	if !ok {
		return []int{0, int(size)}, nil
	}
	if len(arr)%2 != 0 {
		return nil, &XRefError{Msg: "xref stream /Index has odd length"}
	}
	index := make([]int, len(arr))
	for i, obj := range arr {
		n, ok := obj.(Int)
		if !ok || n < 0 {
			return nil, &XRefError{Msg: "xref stream /Index has invalid element"}
		}
		index[i] = int(n)
	}
	return index, nil
}
