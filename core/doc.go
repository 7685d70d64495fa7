// Package core provides low-level PDF parsing primitives: the object
// model, the tokenizer, the object parser, cross-reference handling,
// and stream decoding.
//
// # Object Types
//
// The eight PDF object types are concrete Go types satisfying the
// [Object] interface:
//
//   - [Null] - the null object
//   - [Bool] - booleans
//   - [Int] - integers
//   - [Real] - real numbers
//   - [String] - strings (literal and hexadecimal forms both decode
//     to raw bytes)
//   - [Name] - name objects such as /Type
//   - [Array] - arrays
//   - [Dict] - dictionaries
//
// [Stream] pairs a dictionary with a raw payload, and [IndirectRef]
// points at an indirect object by number and generation.
//
// # Parsing
//
// [Lexer] turns bytes into tokens; [Parser] assembles tokens into
// objects. Both are built for hostile input: stray bytes become junk
// tokens, and a stream whose declared /Length disagrees with the file
// is re-bounded by scanning for the endstream keyword.
//
// # Cross-References
//
// [XRefParser] reads traditional xref tables and xref streams,
// follows Prev chains across incremental updates (newest revision
// wins), and detects pointer loops. When the xref machinery is too
// damaged to use, [ScanObjects] rebuilds a table by scanning the
// whole file for object headers.
//
// # Streams
//
// [Stream.Decode] runs a payload through its filter chain. Filters
// live in a registry so unknown names degrade to a [FilterError]
// carrying partial output instead of sinking the document.
package core
