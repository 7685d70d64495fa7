package reader

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/tsawler/pdfprobe/core"
	"github.com/tsawler/pdfprobe/pages"
	"github.com/tsawler/pdfprobe/resolver"
)

var versionPattern = regexp.MustCompile(`^%PDF-(\d+\.\d+)`)

// Reader provides access to a parsed PDF document. The whole file is
// held in memory: the recovery scan, the structural checks, and
// random-access object parsing all want the full byte range.
type Reader struct {
	data []byte
	path string

	version   string
	xref      *core.XRefTable
	revisions int

	prepended []byte
	appended  []byte

	objCache    map[int]core.Object
	objStms     map[int]*core.ObjectStream
	loading     map[int]bool
	deepResolve *resolver.Resolver

	pageTree *pages.PageTree
}

// Open reads and parses the file at path.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	r, err := NewReader(data)
	if err != nil {
		return nil, err
	}
	r.path = path
	return r, nil
}

// NewReader parses an in-memory document.
func NewReader(data []byte) (*Reader, error) {
	r := &Reader{
		objCache: make(map[int]core.Object),
		objStms:  make(map[int]*core.ObjectStream),
		loading:  make(map[int]bool),
	}
	r.deepResolve = resolver.New(r)

	r.splitEnvelope(data)
	if err := r.loadXRef(); err != nil {
		return nil, err
	}
	return r, nil
}

// splitEnvelope locates the %PDF header and the final %%EOF marker.
// Bytes outside that envelope are recorded: some malware smuggles
// payloads there, and some producers just leave junk. All xref
// offsets are relative to the header, so parsing uses the trimmed
// region.
func (r *Reader) splitEnvelope(data []byte) {
	if idx := bytes.Index(data, []byte("%PDF-")); idx > 0 {
		r.prepended = data[:idx]
		data = data[idx:]
	}
	r.data = data

	if m := versionPattern.FindSubmatch(data); m != nil {
		r.version = string(m[1])
	}

	if idx := bytes.LastIndex(data, []byte("%%EOF")); idx >= 0 {
		tail := data[idx+len("%%EOF"):]
		if len(bytes.TrimSpace(tail)) > 0 {
			r.appended = tail
		}
	}
}

// loadXRef reads the cross-reference chain, falling back to the
// recovery scan when the structures are too damaged to follow.
func (r *Reader) loadXRef() error {
	parser := core.NewXRefParser(bytes.NewReader(r.data))

	if start, err := parser.FindStartXRef(); err == nil {
		if table, revisions, err := parser.ParseAll(start); err == nil {
			if table.Trailer.Has("Root") {
				r.xref = table
				r.revisions = revisions
				return nil
			}
		}
	}

	table, err := core.ScanObjects(r.data)
	if err != nil {
		return err
	}
	r.xref = table
	r.revisions = 1
	return nil
}

// Version returns the header version, e.g. "1.7".
func (r *Reader) Version() string { return r.version }

// Trailer returns the merged trailer dictionary.
func (r *Reader) Trailer() core.Dict { return r.xref.Trailer }

// XRef returns the merged cross-reference table.
func (r *Reader) XRef() *core.XRefTable { return r.xref }

// RevisionCount returns how many incremental revisions the
// cross-reference chain recorded. Recovery-mode documents count as
// one.
func (r *Reader) RevisionCount() int { return r.revisions }

// Recovered reports whether the document was parsed by the recovery
// scan instead of its cross-reference structures.
func (r *Reader) Recovered() bool { return r.xref.Recovered }

// NumObjects returns the number of cross-reference entries.
func (r *Reader) NumObjects() int { return r.xref.Size() }

// PrependedData returns any bytes found before the %PDF header.
func (r *Reader) PrependedData() []byte { return r.prepended }

// AppendedData returns any bytes found after the final %%EOF marker.
func (r *Reader) AppendedData() []byte { return r.appended }

// Encrypted reports whether the trailer names an /Encrypt
// dictionary. Encrypted documents parse structurally, but stream
// payloads and strings stay opaque.
func (r *Reader) Encrypted() bool { return r.xref.Trailer.Has("Encrypt") }

// EncryptRegion reports the byte offset of the encryption dictionary
// when it is an indirect object with a known location, for reporting
// without decoding.
func (r *Reader) EncryptRegion() (offset int64, ok bool) {
	ref, isRef := r.xref.Trailer.GetIndirectRef("Encrypt")
	if !isRef {
		return 0, false
	}
	entry, found := r.xref.Get(ref.Number)
	if !found || entry.Type != core.XRefEntryUncompressed {
		return 0, false
	}
	return entry.Offset, true
}

// GetObject resolves an indirect reference to its object. Free and
// absent entries resolve to null, never an error; results are cached
// for the reader's lifetime, so resolution is idempotent.
func (r *Reader) GetObject(ref core.IndirectRef) (core.Object, error) {
	if obj, ok := r.objCache[ref.Number]; ok {
		return obj, nil
	}
	// An object whose own definition needs itself (a stream whose
	// /Length points back at it) bottoms out at null.
	if r.loading[ref.Number] {
		return core.Null{}, nil
	}
	r.loading[ref.Number] = true
	defer delete(r.loading, ref.Number)

	entry, ok := r.xref.Get(ref.Number)
	if !ok || entry.Type == core.XRefEntryFree {
		r.objCache[ref.Number] = core.Null{}
		return core.Null{}, nil
	}

	var obj core.Object
	var err error
	switch entry.Type {
	case core.XRefEntryUncompressed:
		obj, err = r.parseAt(entry.Offset, ref.Number, entry.Generation)
	case core.XRefEntryCompressed:
		obj, err = r.parseCompressed(int(entry.Offset), entry.Generation, ref.Number)
	}
	if err != nil {
		return nil, err
	}
	r.objCache[ref.Number] = obj
	return obj, nil
}

// parseAt parses the indirect object at a byte offset and verifies
// the header matches the requested number and generation. A mismatch
// means the table entry is stale or lying; the reference is
// unresolvable.
func (r *Reader) parseAt(offset int64, num, gen int) (core.Object, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return core.Null{}, nil
	}
	parser := core.NewParserAt(bytes.NewReader(r.data[offset:]), offset)
	parser.SetResolver(r)
	indirect, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if indirect.Ref.Number != num {
		return core.Null{}, nil
	}
	// Recovery-built tables take the generation from the header
	// itself, so only an authored table can disagree with it.
	if !r.xref.Recovered && indirect.Ref.Generation != gen {
		return core.Null{}, nil
	}
	return indirect.Object, nil
}

// parseCompressed resolves an object stored inside an object stream,
// loading and caching the container on first use.
func (r *Reader) parseCompressed(containerNum, index, num int) (core.Object, error) {
	objStm, ok := r.objStms[containerNum]
	if !ok {
		containerObj, err := r.GetObject(core.IndirectRef{Number: containerNum})
		if err != nil {
			return nil, err
		}
		stream, isStream := containerObj.(*core.Stream)
		if !isStream {
			return core.Null{}, nil
		}
		objStm, err = core.NewObjectStream(stream)
		if err != nil {
			return nil, err
		}
		r.objStms[containerNum] = objStm
	}

	// The index from the xref entry is authoritative, but only if
	// the header at that slot agrees on the object number.
	if storedNum, ok := objStm.NumberAt(index); ok && storedNum == num {
		return objStm.GetByIndex(index)
	}
	obj, err := objStm.GetByNumber(num)
	if err != nil {
		return core.Null{}, nil
	}
	return obj, nil
}

// Resolve implements core.ReferenceResolver, resolver.Source, and
// pages.ObjectResolver by delegating to GetObject.
func (r *Reader) Resolve(ref core.IndirectRef) (core.Object, error) {
	return r.GetObject(ref)
}

// ResolveObject resolves obj if it is a reference; anything else
// resolves to itself.
func (r *Reader) ResolveObject(obj core.Object) (core.Object, error) {
	if ref, ok := obj.(core.IndirectRef); ok {
		return r.GetObject(ref)
	}
	return obj, nil
}

// ResolveDeep returns obj with every reachable reference replaced by
// its target, cycle-safe and depth-bounded.
func (r *Reader) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.deepResolve.ResolveDeep(obj)
}

// GetCatalog returns the document catalog named by the trailer.
func (r *Reader) GetCatalog() (core.Dict, error) {
	root := r.xref.Trailer.Get("Root")
	if root == nil {
		return nil, &core.XRefError{Msg: "trailer has no /Root"}
	}
	obj, err := r.ResolveObject(root)
	if err != nil {
		return nil, err
	}
	catalog, ok := obj.(core.Dict)
	if !ok {
		return nil, &core.ParseError{Msg: fmt.Sprintf("catalog is %T, not a dictionary", obj)}
	}
	return catalog, nil
}

// GetInfo returns the document information dictionary, or nil when
// the document has none.
func (r *Reader) GetInfo() (core.Dict, error) {
	info := r.xref.Trailer.Get("Info")
	if info == nil {
		return nil, nil
	}
	obj, err := r.ResolveObject(info)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(core.Dict)
	if !ok {
		return nil, nil
	}
	return dict, nil
}

// Pages returns the document's page tree, walked once and cached.
func (r *Reader) Pages() (*pages.PageTree, error) {
	if r.pageTree != nil {
		return r.pageTree, nil
	}
	catalog, err := r.GetCatalog()
	if err != nil {
		return nil, err
	}
	tree, err := pages.NewPageTree(catalog, r)
	if err != nil {
		return nil, err
	}
	r.pageTree = tree
	return tree, nil
}

// ObjectNumbers returns every object number in the merged table, for
// whole-document walks like the analyzer's census.
func (r *Reader) ObjectNumbers() []int {
	nums := make([]int, 0, r.xref.Size())
	for num := range r.xref.Entries {
		nums = append(nums, num)
	}
	return nums
}
