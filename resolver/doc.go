// Package resolver follows indirect references through a document's
// object graph safely: reference loops resolve to null instead of
// recursing forever, and deep resolution is bounded by a configurable
// depth.
//
// The package only needs a [Source] to look up references, so it
// works against a live reader or a test fixture alike.
package resolver
