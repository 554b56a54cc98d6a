// Package match reduces a built hierarchy to the single element that best
// fits a normalized query.
//
// # Stages
//
// Stages run strictly in order; calls within a stage fan out up to
// Options.Concurrency and all finish before the next stage starts.
//
//  1. Prefilter: one Classifier.Prefilter call per section
//  2. Relaxed retry: if no section passed, every section is asked once more
//     with relaxed=true; there is no further retry
//  3. Candidates: leaf elements of the surviving sections
//  4. Enrichment: one Classifier.Analyze call per candidate
//  5. Neighbor snapshots: neighbor ids resolved one hop deep
//  6. Matching: candidates in batches of Options.BatchSize, one
//     Classifier.Match call per batch
//  7. Tournament: survivors are batched and matched again until one remains
//
// # Failure Policy
//
// A failed collaborator call excludes only its own section, element or
// batch. Finding nothing is a successful Result with Found false. The only
// error Run returns is a context expiry, wrapped in ErrStageTimeout.
//
// A round that does not shrink the survivor set ends the tournament without
// a match, so Run always terminates.
package match
