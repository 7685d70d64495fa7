// Package analyze produces a structural and metadata report for a
// document without modifying or re-saving it.
//
// The report covers the document information dictionary (with
// UTF-16BE and PDFDocEncoding strings decoded to normalized UTF-8),
// encryption status, revision history, an object-type census, filter
// and color space histograms, and a handful of triage signals useful
// when looking at untrusted files: bytes outside the %PDF..%%EOF
// envelope, JavaScript and launch actions, and large streams no
// object path from the catalog reaches.
package analyze
