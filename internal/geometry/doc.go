// Package geometry provides the box arithmetic shared by the hierarchy
// builder, the neighbor resolver and the annotation overlay.
//
// # Coordinate System
//
// All coordinates are integer pixels with the origin at the top-left corner:
//   - X increases rightward
//   - Y increases downward
//   - A Box is (X1, Y1)-(X2, Y2) with X1 < X2 and Y1 < Y2
//
// # Malformed Input
//
// Every function here is pure. Boxes that violate X1 < X2 or Y1 < Y2 are
// reported by Validate and never silently repaired: Contains returns false,
// IoU returns 0 and the overlap tests return false for such boxes.
package geometry
