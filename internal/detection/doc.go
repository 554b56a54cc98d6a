// Package detection is a local, network-free Detector for UI screenshots.
//
// It finds candidate regions by segmenting foreground from background
// rather than by recognizing objects, so it has no notion of what a region
// is. It serves as the fallback when no remote detector is configured and
// as a cheap secondary source in hybrid mode.
//
// # Algorithm Overview
//
//  1. Grayscale: convert with 0.3R + 0.6G + 0.1B weights
//  2. Background: take the most common gray level as the background
//  3. Mask: threshold |gray - background| into a binary foreground mask
//  4. Grouping: dilate the mask at each configured radius so nearby glyphs
//     fuse into words and controls
//  5. Components: flood-fill the dilated mask; each component's box is the
//     tight box of the original foreground pixels it covers
//  6. Labeling: name each box "text", "icon" or "region" from its shape
//
// Each dilation radius yields one level of detections. Small radii give
// words and icons; larger radii give lines and grouped controls. Exact
// duplicate boxes across levels are reported once.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// # Limitations
//
// Works best on flat UI: solid backgrounds with high-contrast content.
// Gradients, photographs and drop shadows produce large merged regions.
package detection
