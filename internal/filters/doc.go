// Package filters implements the byte-transform codecs used by PDF
// stream filters: Flate, LZW, ASCIIHex, ASCII85, RunLength, and CCITT
// Group 3/4 fax, plus the TIFF and PNG predictors that Flate and LZW
// payloads may be wrapped in.
//
// Every codec shares the signature
//
//	func(data []byte, params Params) ([]byte, error)
//
// and, where the underlying format allows it, returns the bytes
// decoded before a failure alongside the error, so callers can keep
// partial output from damaged streams.
package filters
