package core

import (
	"errors"
	"fmt"
)

// ErrEncryptionUnsupported is returned when an operation would need to
// decrypt content. Encrypted documents can still be parsed structurally;
// only their stream payloads and strings are off limits.
var ErrEncryptionUnsupported = errors.New("encrypted document: decryption is not supported")

// LexError reports malformed input the tokenizer could not recover from,
// such as a literal string left open at end of input.
type LexError struct {
	Pos int64 // byte offset within the tokenized region
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Pos, e.Msg)
}

// ParseError reports a structural problem while assembling objects from
// tokens: an unbalanced dictionary, a dictionary key that is not a name,
// a truncated indirect object, and so on.
type ParseError struct {
	Pos int64
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at offset %d: %s: %v", e.Pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// XRefError reports a broken cross-reference structure. Callers normally
// respond by falling back to a full-file recovery scan.
type XRefError struct {
	Msg string
	Err error
}

func (e *XRefError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xref error: %s: %v", e.Msg, e.Err)
	}
	return "xref error: " + e.Msg
}

func (e *XRefError) Unwrap() error { return e.Err }

// FilterError reports a failed or unknown stream filter. Partial holds
// whatever bytes had been produced before the failure so callers can keep
// going with degraded data. Filter decode failures are non-fatal: the
// document as a whole remains usable.
type FilterError struct {
	Filter  string
	Partial []byte
	Err     error
}

func (e *FilterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filter %s: %v", e.Filter, e.Err)
	}
	return fmt.Sprintf("filter %s: decode failed", e.Filter)
}

func (e *FilterError) Unwrap() error { return e.Err }
