// Package reader exposes a parsed PDF document: the merged
// cross-reference table across all incremental revisions, lazy
// object resolution with a process-lifetime cache, the page tree,
// and image XObject decoding to pixel buffers.
//
// A Reader is built for untrusted input. Broken cross-reference
// structures fall back to a full-file recovery scan, and structural
// oddities (bytes prepended before the header, bytes appended after
// the final %%EOF) are recorded rather than rejected.
//
// Readers are not safe for concurrent use; callers coordinate access
// themselves.
package reader
