// Package locate runs one request end to end: from screenshot bytes and a
// free-text query to the matched element.
//
// The hierarchy of a screenshot is keyed by the SHA-256 of its bytes and
// reused across requests through the artifact cache, so repeated queries
// against the same screenshot skip detection entirely. Query normalization
// runs alongside hierarchy construction.
//
// Errors from the detector and the normalizer end the request and wrap
// ErrDetect or ErrNormalize. Everything downstream degrades per item inside
// the match pipeline, and "no match" is a successful result.
package locate
