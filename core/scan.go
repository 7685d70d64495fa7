package core

import (
	"bytes"
	"regexp"
	"sort"
)

// objHeader matches an indirect object header anywhere in the byte
// stream. Used only in recovery mode, when the xref machinery has
// given up.
var objHeader = regexp.MustCompile(`(\d{1,10})\s+(\d{1,5})\s+obj\b`)

// ScanObjects rebuilds a cross-reference table by brute force: every
// "N G obj" header in the file becomes an entry. When the same object
// number appears more than once the final occurrence in byte order
// wins, mirroring how a conforming reader would see the newest
// incremental update last.
//
// A trailer is synthesized if the real one is unusable, so callers
// can still locate the catalog.
func ScanObjects(data []byte) (*XRefTable, error) {
	table := NewXRefTable()
	table.Recovered = true

	matches := objHeader.FindAllSubmatchIndex(data, -1)
	for _, m := range matches {
		num := atoiBytes(data[m[2]:m[3]])
		gen := atoiBytes(data[m[4]:m[5]])
		table.Set(num, &XRefEntry{
			Type:       XRefEntryUncompressed,
			Offset:     int64(m[0]),
			Generation: gen,
			InUse:      true,
		})
	}
	if table.Size() == 0 {
		return nil, &XRefError{Msg: "recovery scan found no objects"}
	}

	table.Trailer = scanTrailer(data, table)
	return table, nil
}

func atoiBytes(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// scanTrailer recovers a trailer dictionary. Preference order: the
// last parsable trailer keyword that names a /Root, then a synthetic
// trailer pointing at whichever scanned object is the catalog.
func scanTrailer(data []byte, table *XRefTable) Dict {
	end := len(data)
	for end > 0 {
		idx := bytes.LastIndex(data[:end], []byte("trailer"))
		if idx < 0 {
			break
		}
		end = idx
		parser := NewParser(bytes.NewReader(data[idx+len("trailer"):]))
		obj, err := parser.ParseObject()
		if err != nil {
			continue
		}
		if dict, ok := obj.(Dict); ok && dict.Has("Root") {
			return dict
		}
	}

	// No trailer survived. Look for the catalog itself.
	nums := make([]int, 0, table.Size())
	maxNum := 0
	for num := range table.Entries {
		nums = append(nums, num)
		if num > maxNum {
			maxNum = num
		}
	}
	sort.Ints(nums)

	for _, num := range nums {
		entry := table.Entries[num]
		if entry.Type != XRefEntryUncompressed || entry.Offset >= int64(len(data)) {
			continue
		}
		parser := NewParserAt(bytes.NewReader(data[entry.Offset:]), entry.Offset)
		indirect, err := parser.ParseIndirectObject()
		if err != nil {
			continue
		}
		if dict, ok := indirect.Object.(Dict); ok {
			if typ, _ := dict.GetName("Type"); typ == "Catalog" {
				return Dict{
					"Root": IndirectRef{Number: num, Generation: entry.Generation},
					"Size": Int(maxNum + 1),
				}
			}
		}
	}
	return Dict{"Size": Int(maxNum + 1)}
}
