package analyze

import (
	"fmt"
	"io"
	"sort"

	"github.com/tsawler/pdfprobe/core"
	"github.com/tsawler/pdfprobe/reader"
)

// largeStreamMin is the raw payload size above which an unreferenced
// stream is worth flagging.
const largeStreamMin = 1024

// Report is the result of analyzing one document.
type Report struct {
	Version   string
	Encrypted bool
	// EncryptOffset is the byte offset of the encryption dictionary
	// when EncryptLocated is set.
	EncryptOffset  int64
	EncryptLocated bool

	// Recovered is set when the cross-reference structures were too
	// damaged to use and the document was rebuilt by scanning.
	Recovered bool
	Revisions int

	ObjectCount   int
	PageCount     int
	CycleDetected bool

	// Info holds the document information dictionary with string
	// values decoded to normalized UTF-8.
	Info map[string]string
	// HasXMP reports a /Metadata stream on the catalog.
	HasXMP bool

	// TypeCensus counts objects by their /Type name; untyped objects
	// count under their kind (Stream, Dict, Array, ...).
	TypeCensus map[string]int
	// FilterCensus counts stream filter usage.
	FilterCensus map[string]int
	// ColorSpaceCensus counts image color space families.
	ColorSpaceCensus map[string]int

	FontCount       int
	AnnotationCount int

	HasJavaScript        bool
	HasOpenAction        bool
	HasAdditionalActions bool

	PrependedBytes int
	AppendedBytes  int

	// UnreferencedStreams lists object numbers of large streams that
	// no reference path from the trailer reaches.
	UnreferencedStreams []int

	// Warnings collects non-fatal oddities found along the way.
	Warnings []string
}

// Analyze inspects r and builds a report. The reader is only read
// from; analysis never rewrites or re-saves anything.
func Analyze(r *reader.Reader) (*Report, error) {
	rep := &Report{
		Version:          r.Version(),
		Encrypted:        r.Encrypted(),
		Recovered:        r.Recovered(),
		Revisions:        r.RevisionCount(),
		ObjectCount:      r.NumObjects(),
		Info:             make(map[string]string),
		TypeCensus:       make(map[string]int),
		FilterCensus:     make(map[string]int),
		ColorSpaceCensus: make(map[string]int),
		PrependedBytes:   len(r.PrependedData()),
		AppendedBytes:    len(r.AppendedData()),
	}
	if rep.Encrypted {
		rep.EncryptOffset, rep.EncryptLocated = r.EncryptRegion()
	}
	if rep.Recovered {
		rep.warn("cross-reference structures unusable; object index rebuilt by scanning")
	}
	if rep.PrependedBytes > 0 {
		rep.warn("%d bytes precede the %%PDF header", rep.PrependedBytes)
	}
	if rep.AppendedBytes > 0 {
		rep.warn("%d bytes follow the final %%%%EOF", rep.AppendedBytes)
	}

	rep.collectInfo(r)
	rep.collectCatalog(r)
	rep.collectPages(r)
	reachable := rep.census(r)
	rep.findUnreferenced(r, reachable)

	return rep, nil
}

func (rep *Report) warn(format string, args ...interface{}) {
	rep.Warnings = append(rep.Warnings, fmt.Sprintf(format, args...))
}

func (rep *Report) collectInfo(r *reader.Reader) {
	info, err := r.GetInfo()
	if err != nil || info == nil {
		return
	}
	for _, key := range info.SortedKeys() {
		obj, err := r.ResolveObject(info.Get(key))
		if err != nil {
			continue
		}
		if s, ok := obj.(core.String); ok {
			rep.Info[key] = decodeText(s)
		}
	}
}

func (rep *Report) collectCatalog(r *reader.Reader) {
	catalog, err := r.GetCatalog()
	if err != nil {
		rep.warn("catalog unavailable: %v", err)
		return
	}
	rep.HasXMP = catalog.Has("Metadata")
	rep.HasOpenAction = catalog.Has("OpenAction")
	rep.HasAdditionalActions = catalog.Has("AA")

	// Document-level scripts live under /Names /JavaScript.
	if names, err := resolveDict(r, catalog.Get("Names")); err == nil && names != nil {
		if names.Has("JavaScript") {
			rep.HasJavaScript = true
		}
	}
}

func (rep *Report) collectPages(r *reader.Reader) {
	tree, err := r.Pages()
	if err != nil {
		rep.warn("page tree unavailable: %v", err)
		return
	}
	rep.PageCount = tree.Count()
	rep.CycleDetected = tree.CycleDetected()
	if rep.CycleDetected {
		rep.warn("page tree contains a cycle; the loop edge was pruned")
	}

	for _, page := range tree.Pages() {
		if page.Dict.Has("AA") {
			rep.HasAdditionalActions = true
		}
		annots, err := r.ResolveObject(page.Dict.Get("Annots"))
		if err != nil {
			continue
		}
		if arr, ok := annots.(core.Array); ok {
			rep.AnnotationCount += len(arr)
		}
	}
}

// census walks every object in the merged table, counting types,
// filters, and image color spaces. It returns the set of object
// numbers reachable from the trailer, computed on the same pass's
// cache, for the unreferenced-stream check.
func (rep *Report) census(r *reader.Reader) map[int]bool {
	nums := r.ObjectNumbers()
	sort.Ints(nums)

	unloadable := 0
	for _, num := range nums {
		obj, err := r.GetObject(core.IndirectRef{Number: num})
		if err != nil {
			unloadable++
			continue
		}
		rep.censusObject(obj)
	}
	if unloadable > 0 {
		rep.warn("%d objects could not be loaded", unloadable)
	}

	return reachableFrom(r, r.Trailer())
}

func (rep *Report) censusObject(obj core.Object) {
	switch o := obj.(type) {
	case *core.Stream:
		if typ, ok := o.Dict.GetName("Type"); ok {
			rep.TypeCensus[string(typ)]++
		} else {
			rep.TypeCensus["Stream"]++
		}
		for _, f := range o.FilterNames() {
			rep.FilterCensus[f]++
		}
		if subtype, _ := o.Dict.GetName("Subtype"); subtype == "Image" {
			rep.ColorSpaceCensus[colorSpaceFamily(o.Dict)]++
		}
		if rep.dictHasScript(o.Dict) {
			rep.HasJavaScript = true
		}
	case core.Dict:
		if typ, ok := o.GetName("Type"); ok {
			rep.TypeCensus[string(typ)]++
			if typ == "Font" {
				rep.FontCount++
			}
		} else {
			rep.TypeCensus["Dict"]++
		}
		if rep.dictHasScript(o) {
			rep.HasJavaScript = true
		}
	case core.Null:
		rep.TypeCensus["Null"]++
	default:
		rep.TypeCensus[obj.Type().String()]++
	}
}

// dictHasScript spots action dictionaries carrying scripts.
func (rep *Report) dictHasScript(d core.Dict) bool {
	s, ok := d.GetName("S")
	return ok && (s == "JavaScript" || s == "Launch")
}

// colorSpaceFamily extracts the family name from either color space
// form without resolving indirect palettes.
func colorSpaceFamily(dict core.Dict) string {
	obj := dict.Get("ColorSpace")
	if obj == nil {
		obj = dict.Get("CS")
	}
	switch cs := obj.(type) {
	case core.Name:
		return string(cs)
	case core.Array:
		if len(cs) > 0 {
			if name, ok := cs[0].(core.Name); ok {
				return string(name)
			}
		}
	}
	return "Unknown"
}

// reachableFrom walks references transitively from the trailer's
// values, iteratively with a visited set.
func reachableFrom(r *reader.Reader, trailer core.Dict) map[int]bool {
	reachable := make(map[int]bool)
	var stack []core.Object
	for _, key := range trailer.Keys() {
		stack = append(stack, trailer.Get(key))
	}

	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch o := obj.(type) {
		case core.IndirectRef:
			if reachable[o.Number] {
				continue
			}
			reachable[o.Number] = true
			target, err := r.GetObject(o)
			if err == nil {
				stack = append(stack, target)
			}
		case core.Dict:
			for _, key := range o.Keys() {
				stack = append(stack, o.Get(key))
			}
		case core.Array:
			stack = append(stack, o...)
		case *core.Stream:
			for _, key := range o.Dict.Keys() {
				stack = append(stack, o.Dict.Get(key))
			}
		}
	}
	return reachable
}

// findUnreferenced flags large streams nothing points at. Container
// streams (object streams, xref streams) are infrastructure and never
// referenced from the catalog, so they are exempt.
func (rep *Report) findUnreferenced(r *reader.Reader, reachable map[int]bool) {
	nums := r.ObjectNumbers()
	sort.Ints(nums)

	for _, num := range nums {
		if reachable[num] {
			continue
		}
		obj, err := r.GetObject(core.IndirectRef{Number: num})
		if err != nil {
			continue
		}
		stream, ok := obj.(*core.Stream)
		if !ok || len(stream.Data) < largeStreamMin {
			continue
		}
		if typ, _ := stream.Dict.GetName("Type"); typ == "ObjStm" || typ == "XRef" {
			continue
		}
		rep.UnreferencedStreams = append(rep.UnreferencedStreams, num)
	}
	if len(rep.UnreferencedStreams) > 0 {
		rep.warn("%d large streams are unreachable from the catalog", len(rep.UnreferencedStreams))
	}
}

// Write renders the report as text.
func (rep *Report) Write(w io.Writer) error {
	p := func(format string, args ...interface{}) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	p("Version:        %s", orUnknown(rep.Version))
	p("Objects:        %d", rep.ObjectCount)
	p("Pages:          %d", rep.PageCount)
	p("Revisions:      %d", rep.Revisions)
	p("Recovered:      %t", rep.Recovered)
	p("Encrypted:      %t", rep.Encrypted)
	if rep.EncryptLocated {
		p("Encrypt dict:   offset %d", rep.EncryptOffset)
	}
	p("XMP metadata:   %t", rep.HasXMP)
	p("Fonts:          %d", rep.FontCount)
	p("Annotations:    %d", rep.AnnotationCount)
	p("JavaScript:     %t", rep.HasJavaScript)
	p("OpenAction:     %t", rep.HasOpenAction)
	p("Extra actions:  %t", rep.HasAdditionalActions)

	if len(rep.Info) > 0 {
		p("")
		p("Document info:")
		for _, key := range sortedKeys(rep.Info) {
			p("  %-14s %s", key+":", rep.Info[key])
		}
	}
	if len(rep.TypeCensus) > 0 {
		p("")
		p("Object types:")
		writeCensus(w, rep.TypeCensus)
	}
	if len(rep.FilterCensus) > 0 {
		p("")
		p("Filters:")
		writeCensus(w, rep.FilterCensus)
	}
	if len(rep.ColorSpaceCensus) > 0 {
		p("")
		p("Image color spaces:")
		writeCensus(w, rep.ColorSpaceCensus)
	}
	if len(rep.UnreferencedStreams) > 0 {
		p("")
		p("Unreferenced large streams: %v", rep.UnreferencedStreams)
	}
	if len(rep.Warnings) > 0 {
		p("")
		p("Warnings:")
		for _, warning := range rep.Warnings {
			p("  - %s", warning)
		}
	}
	return nil
}

func writeCensus(w io.Writer, census map[string]int) {
	keys := make([]string, 0, len(census))
	for key := range census {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "  %-14s %d\n", key+":", census[key])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func resolveDict(r *reader.Reader, obj core.Object) (core.Dict, error) {
	if obj == nil {
		return nil, nil
	}
	resolved, err := r.ResolveObject(obj)
	if err != nil {
		return nil, err
	}
	dict, _ := resolved.(core.Dict)
	return dict, nil
}
