package core

import (
	"fmt"

	"github.com/tsawler/pdfprobe/internal/filters"
)

// FilterFunc transforms one filter's worth of encoded bytes. On error
// it may return the bytes produced before the failure; Decode carries
// them into the FilterError so callers can salvage partial output.
type FilterFunc func(data []byte, params filters.Params) ([]byte, error)

func passthrough(data []byte, _ filters.Params) ([]byte, error) {
	return data, nil
}

// filterRegistry maps filter names to their transforms. Image codecs
// (DCT, JPX, JBIG2) pass through untouched: their payloads are
// complete files in their own right and are written out as such.
var filterRegistry = map[string]FilterFunc{
	"FlateDecode":     filters.FlateDecode,
	"LZWDecode":       filters.LZWDecode,
	"ASCIIHexDecode":  filters.ASCIIHexDecode,
	"ASCII85Decode":   filters.ASCII85Decode,
	"RunLengthDecode": filters.RunLengthDecode,
	"CCITTFaxDecode":  filters.CCITTFaxDecode,
	"DCTDecode":       passthrough,
	"JPXDecode":       passthrough,
	"JBIG2Decode":     passthrough,

	// Inline-image abbreviations.
	"Fl":  filters.FlateDecode,
	"LZW": filters.LZWDecode,
	"AHx": filters.ASCIIHexDecode,
	"A85": filters.ASCII85Decode,
	"RL":  filters.RunLengthDecode,
	"CCF": filters.CCITTFaxDecode,
	"DCT": passthrough,
}

// RegisterFilter installs or replaces a filter transform.
func RegisterFilter(name string, fn FilterFunc) {
	filterRegistry[name] = fn
}

// IsPassthroughFilter reports whether name denotes a codec whose
// payload is kept in its native encoding rather than decoded.
func IsPassthroughFilter(name string) bool {
	switch name {
	case "DCTDecode", "DCT", "JPXDecode", "JBIG2Decode":
		return true
	}
	return false
}

// Decode runs the stream payload through its /Filter chain, applying
// filters left to right and pairing each with its /DecodeParms entry
// positionally. The result (or the failure) is memoized.
func (s *Stream) Decode() ([]byte, error) {
	if s.ran {
		return s.decoded, s.decodeErr
	}
	s.ran = true
	s.decoded, s.decodeErr = s.decode()
	return s.decoded, s.decodeErr
}

func (s *Stream) decode() ([]byte, error) {
	names := s.FilterNames()
	parms := s.decodeParms(len(names))

	data := s.Data
	for i, name := range names {
		fn, ok := filterRegistry[name]
		if !ok {
			return data, &FilterError{
				Filter:  name,
				Partial: data,
				Err:     fmt.Errorf("unknown filter"),
			}
		}
		out, err := fn(data, parms[i])
		if err != nil {
			return out, &FilterError{Filter: name, Partial: out, Err: err}
		}
		data = out
	}
	return data, nil
}

// decodeParms normalizes /DecodeParms (or its /DP abbreviation) into
// one parameter map per filter. A single dictionary applies to the
// first filter; nulls and missing tail entries mean no parameters.
func (s *Stream) decodeParms(n int) []filters.Params {
	parms := make([]filters.Params, n)

	raw := s.Dict.Get("DecodeParms")
	if raw == nil {
		raw = s.Dict.Get("DP")
	}
	switch v := raw.(type) {
	case Dict:
		if n > 0 {
			parms[0] = dictToParams(v)
		}
	case Array:
		for i := 0; i < n && i < len(v); i++ {
			if d, ok := v[i].(Dict); ok {
				parms[i] = dictToParams(d)
			}
		}
	}
	return parms
}

func dictToParams(d Dict) filters.Params {
	p := make(filters.Params, len(d))
	for key, value := range d {
		switch v := value.(type) {
		case Int:
			p[key] = int(v)
		case Bool:
			p[key] = bool(v)
		case Name:
			p[key] = string(v)
		case Real:
			p[key] = int(v)
		}
	}
	return p
}
