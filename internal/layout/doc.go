// Package layout turns a flat list of detections into the region hierarchy
// the matcher works on.
//
// # Hierarchy
//
// Build produces three kinds of region:
//
//   - Section: a full-width horizontal band between vertical whitespace gaps
//   - Element: a merged detection owned by exactly one Section
//   - Container: an advisory density region at one of three scales
//
// Sections never nest. Deeper grouping lives only in the Container forest,
// where each container points at the smallest enclosing container of the
// next coarser level or at RootContainerID.
//
// # Build Pipeline
//
//  1. Deduplication: detections whose IoU with a group seed exceeds
//     Config.IoUThreshold collapse into the highest-scoring one, with
//     distinct labels joined by " | "
//  2. Size filter: keep MinArea < area < MaxArea
//  3. Layout buckets: menu-like (fixed height band), paragraph-like (wide),
//     list-like (indented), other
//  4. Run merging per bucket: menu items on one line, stacked paragraph
//     lines and list items are unioned into a single element
//  5. Sectioning: cut at vertical gaps of at least MinGap pixels and assign
//     every element to the band covering the largest share of its height
//  6. Containment and neighbors, per section
//  7. Density containers from the surviving element boxes
//
// An element no band covers by more than ClaimFraction of its height is
// dropped, logged and listed in Hierarchy.Dropped.
//
// # Identifiers
//
// Element and section ids are name-based UUIDs over the box coordinates
// (and label for elements). The same detections always yield the same ids,
// which keeps Build output byte-identical across runs and processes.
//
// # Neighbors
//
// ResolveNeighbors links each element to the nearest element in each
// direction within its section. Neighbors are stored as ids only and are
// not symmetric.
package layout
