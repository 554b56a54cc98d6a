// Package ocr turns Tesseract word and line boxes into layout detections.
//
// The Detector here satisfies perception.Detector, so it can stand alone or
// run as a secondary source next to a remote detector. Text found by OCR
// fills the gap a generic object detector leaves around plain labels and
// menu entries.
//
// # Prerequisites
//
// Recognition needs cgo and a Tesseract install:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Without cgo the package still builds, and Detect returns an error wrapping
// perception.ErrUnavailable. Hybrid detection treats that as a skipped
// secondary source.
//
// # Scaling
//
// Tesseract reads small UI fonts poorly. When Config.Scale is above 1 the
// screenshot is enlarged before recognition and the boxes are mapped back
// to the original coordinates.
package ocr
