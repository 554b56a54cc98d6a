// Package perception defines the collaborators the locator consults for
// every judgment about pixels, and an HTTP client that reaches them.
//
// # Contracts
//
//   - Detector: raw regions and image size for a screenshot
//   - Normalizer: structured attributes for a free-text request
//   - Classifier: prefilter a section, analyze an element, pick one match
//     out of a batch
//
// Detector and Normalizer failures abort a request. Classifier failures only
// exclude the section, element or batch concerned; that policy lives in the
// match package, not here.
//
// # Wire Format
//
// Client speaks JSON over HTTP, with multipart uploads for images:
//
//	POST {detector}/api/detect        multipart "file"
//	POST {base}/api/v1/normalize      {"prompt"}
//	POST {base}/api/v1/prefilter      {"normalized_prompt", "sections", "relaxed"}
//	POST {base}/api/v1/analyze        multipart "images"
//	POST {base}/api/v1/match          {"normalized_prompt", "elements"}
//
// A Client owns its connection pool; Close releases it.
package perception
