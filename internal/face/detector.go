// Package face wraps the third-party face detection call. Two backends
// implement the same contract: a REST endpoint keyed by subscription, and a
// Gemini vision model on Vertex AI reading the image straight from the
// bucket.
package face

import "context"

// Image addresses one uploaded blob. URL is the HTTPS form a REST endpoint
// fetches; GCSUri is the gs:// form Vertex reads natively.
type Image struct {
	URL    string
	GCSUri string
}

// Detector reports how many faces appear in an image. Implementations never
// retry; a failed call surfaces as an upstream error with detail attached.
type Detector interface {
	Detect(ctx context.Context, img Image) (int, error)
}
