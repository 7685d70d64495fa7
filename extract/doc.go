// Package extract pulls image resources out of a document and writes
// them to a directory.
//
// Extraction runs in two phases. Collection walks the page tree and
// each page's resource dictionaries (descending into Form XObjects)
// on a single goroutine, because object resolution shares the
// reader's cache. Decoding, which is pure per image, fans out across
// a bounded worker pool. Output order is deterministic regardless of
// worker count: pages in document order, resource keys sorted within
// each page.
package extract
