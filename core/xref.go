package core

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// XRefEntryType discriminates cross-reference entry variants.
type XRefEntryType int

const (
	// XRefEntryFree marks an object number on the free list.
	XRefEntryFree XRefEntryType = iota
	// XRefEntryUncompressed locates an object at a byte offset.
	XRefEntryUncompressed
	// XRefEntryCompressed locates an object inside an object stream.
	XRefEntryCompressed
)

// XRefEntry is one cross-reference table entry.
//
// For XRefEntryCompressed entries the fields are reused the way xref
// streams encode them: Offset holds the container object-stream
// number and Generation holds the index within that stream.
type XRefEntry struct {
	Type       XRefEntryType
	Offset     int64
	Generation int
	InUse      bool
}

// XRefTable maps object numbers to entries and carries the trailer
// dictionary the table was found with.
type XRefTable struct {
	Entries map[int]*XRefEntry
	Trailer Dict

	// IsStream records whether this table came from an xref stream.
	IsStream bool
	// Recovered records that the table was rebuilt by scanning the
	// whole file rather than read from xref structures.
	Recovered bool
}

// NewXRefTable returns an empty table.
func NewXRefTable() *XRefTable {
	return &XRefTable{Entries: make(map[int]*XRefEntry)}
}

// Get returns the entry for an object number.
func (t *XRefTable) Get(num int) (*XRefEntry, bool) {
	e, ok := t.Entries[num]
	return e, ok
}

// Set stores an entry for an object number.
func (t *XRefTable) Set(num int, e *XRefEntry) {
	t.Entries[num] = e
}

// Size returns the number of entries.
func (t *XRefTable) Size() int {
	return len(t.Entries)
}

// MergeOlder folds an older revision's table into t. Entries already
// present win: the document is processed newest revision first, and
// an update shadows every object it rewrites.
func (t *XRefTable) MergeOlder(older *XRefTable) {
	for num, entry := range older.Entries {
		if _, exists := t.Entries[num]; !exists {
			t.Entries[num] = entry
		}
	}
	for key, value := range older.Trailer {
		if _, exists := t.Trailer[key]; !exists {
			if t.Trailer == nil {
				t.Trailer = Dict{}
			}
			t.Trailer[key] = value
		}
	}
}

// XRefParser reads cross-reference structures: traditional tables,
// xref streams (xref_stream.go), and the startxref pointer.
type XRefParser struct {
	r io.ReadSeeker
}

// NewXRefParser creates an XRefParser over r.
func NewXRefParser(r io.ReadSeeker) *XRefParser {
	return &XRefParser{r: r}
}

// startXRefWindow is how far from the end of the file the startxref
// keyword is searched for.
const startXRefWindow = 1024

// FindStartXRef locates the startxref pointer in the file tail and
// returns the offset it names. The last occurrence wins, matching how
// incrementally updated files stack their trailers.
func (x *XRefParser) FindStartXRef() (int64, error) {
	size, err := x.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, &XRefError{Msg: "seek to end failed", Err: err}
	}

	window := int64(startXRefWindow)
	if size < window {
		window = size
	}
	if _, err := x.r.Seek(size-window, io.SeekStart); err != nil {
		return 0, &XRefError{Msg: "seek to tail failed", Err: err}
	}
	tail := make([]byte, window)
	if _, err := io.ReadFull(x.r, tail); err != nil {
		return 0, &XRefError{Msg: "short read in tail", Err: err}
	}

	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, &XRefError{Msg: "startxref keyword not found"}
	}

	rest := tail[idx+len("startxref"):]
	fields := strings.Fields(string(rest))
	if len(fields) == 0 {
		return 0, &XRefError{Msg: "startxref missing offset"}
	}
	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, &XRefError{Msg: "startxref offset is not a number", Err: err}
	}
	if offset < 0 || offset >= size {
		return 0, &XRefError{Msg: "startxref offset outside file"}
	}
	return offset, nil
}

// ParseXRef parses the cross-reference structure at the given byte
// offset, dispatching between a traditional table and an xref stream.
func (x *XRefParser) ParseXRef(offset int64) (*XRefTable, error) {
	if _, err := x.r.Seek(offset, io.SeekStart); err != nil {
		return nil, &XRefError{Msg: "seek to xref failed", Err: err}
	}
	isStream, err := x.isXRefStream()
	if err != nil {
		return nil, err
	}
	if _, err := x.r.Seek(offset, io.SeekStart); err != nil {
		return nil, &XRefError{Msg: "seek to xref failed", Err: err}
	}
	if isStream {
		return x.parseXRefStream()
	}
	return x.parseTraditional()
}

// ParseAll walks the revision chain starting at the newest table,
// following Prev (and hybrid XRefStm) pointers backward. A visited
// offset set makes the walk terminate even when Prev pointers form a
// loop. Returns the merged table and the number of revisions read.
func (x *XRefParser) ParseAll(start int64) (*XRefTable, int, error) {
	merged := NewXRefTable()
	merged.Trailer = Dict{}
	visited := make(map[int64]bool)
	revisions := 0

	offset := start
	for offset >= 0 && !visited[offset] {
		visited[offset] = true
		table, err := x.ParseXRef(offset)
		if err != nil {
			if revisions == 0 {
				return nil, 0, err
			}
			// An older revision is damaged. The newer revisions
			// already read still describe a usable document.
			break
		}
		revisions++
		merged.IsStream = merged.IsStream || table.IsStream
		merged.MergeOlder(table)

		// Hybrid files: a traditional table whose trailer points at
		// an xref stream carrying the compressed-object entries.
		if stmOffset, ok := table.Trailer.GetInt("XRefStm"); ok && !visited[stmOffset] {
			visited[stmOffset] = true
			if stmTable, err := x.ParseXRef(stmOffset); err == nil {
				merged.MergeOlder(stmTable)
			}
		}

		prev, ok := table.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = prev
	}

	if revisions == 0 {
		return nil, 0, &XRefError{Msg: "no cross-reference table found"}
	}
	return merged, revisions, nil
}

// parseTraditional parses an "xref" keyword table and its trailer.
// The reader is positioned at the table's first byte.
func (x *XRefParser) parseTraditional() (*XRefTable, error) {
	br := bufio.NewReader(x.r)

	line, err := readXRefLine(br)
	if err != nil {
		return nil, &XRefError{Msg: "reading xref keyword", Err: err}
	}
	if !strings.HasPrefix(line, "xref") {
		return nil, &XRefError{Msg: "expected xref keyword, got " + strconv.Quote(line)}
	}

	table := NewXRefTable()
	for {
		line, err := readXRefLine(br)
		if err != nil {
			return nil, &XRefError{Msg: "unexpected end of xref table", Err: err}
		}

		if strings.HasPrefix(line, "trailer") {
			rest := strings.TrimSpace(strings.TrimPrefix(line, "trailer"))
			trailer, err := parseTrailerDict(rest, br)
			if err != nil {
				return nil, err
			}
			table.Trailer = trailer
			return table, nil
		}

		start, count, err := parseSubsectionHeader(line)
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			entryLine, err := readXRefLine(br)
			if err != nil {
				return nil, &XRefError{Msg: "truncated xref subsection", Err: err}
			}
			entry, err := parseTableEntry(entryLine)
			if err != nil {
				return nil, err
			}
			table.Set(start+i, entry)
		}
	}
}

// readXRefLine returns the next non-blank line with the EOL stripped.
func readXRefLine(br *bufio.Reader) (string, error) {
	for {
		line, err := br.ReadString('\n')
		line = strings.Trim(line, "\r\n ")
		if line != "" {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

func parseSubsectionHeader(line string) (start, count int, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, &XRefError{Msg: "malformed xref subsection header " + strconv.Quote(line)}
	}
	start, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, &XRefError{Msg: "bad subsection start", Err: err}
	}
	count, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, &XRefError{Msg: "bad subsection count", Err: err}
	}
	if start < 0 || count < 0 {
		return 0, 0, &XRefError{Msg: "negative xref subsection bounds"}
	}
	return start, count, nil
}

// parseTableEntry parses one 20-byte entry line: a 10-digit offset, a
// 5-digit generation, and an n/f type letter.
func parseTableEntry(line string) (*XRefEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, &XRefError{Msg: "malformed xref entry " + strconv.Quote(line)}
	}
	offset, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, &XRefError{Msg: "bad entry offset", Err: err}
	}
	gen, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &XRefError{Msg: "bad entry generation", Err: err}
	}
	switch fields[2] {
	case "n":
		return &XRefEntry{Type: XRefEntryUncompressed, Offset: offset, Generation: gen, InUse: true}, nil
	case "f":
		return &XRefEntry{Type: XRefEntryFree, Offset: offset, Generation: gen}, nil
	}
	return nil, &XRefError{Msg: "unknown xref entry type " + strconv.Quote(fields[2])}
}

// parseTrailerDict parses the dictionary after the trailer keyword.
// rest is whatever shared the keyword's line.
func parseTrailerDict(rest string, br *bufio.Reader) (Dict, error) {
	parser := NewParser(io.MultiReader(strings.NewReader(rest+"\n"), br))
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, &XRefError{Msg: "parsing trailer dictionary", Err: err}
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, &XRefError{Msg: "trailer is not a dictionary"}
	}
	return dict, nil
}
