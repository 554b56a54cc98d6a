// Package imaging provides the pixel plumbing around the locator: reading
// and decoding screenshots, cutting PNG crops for sections and elements,
// naming dominant colors and drawing the hierarchy over a screenshot.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// Boxes are clipped to the image before cropping. A box with no area left
// after clipping is an error, never an empty crop.
//
// # Color Naming
//
// DominantColorName quantizes the pixels of a crop, takes the most common
// bucket and returns the nearest entry of a fixed palette by CIE Lab
// distance. The palette uses the plain names a user would type ("blue",
// "dark gray"), which is what the matcher compares against.
//
// # Thread Safety
//
// Every function here is stateless and safe to call concurrently on images
// that are not being modified.
package imaging
