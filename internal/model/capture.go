package model

import (
	"sort"
	"time"
)

// Capture summarizes one archive operation.
// It is written to the capture history and rendered by the report writers.
type Capture struct {
	// ID uniquely identifies the capture (UUID).
	ID string `json:"id"`

	// URL is the archived document URL.
	URL string `json:"url"`

	// StartedAt and FinishedAt bound the capture.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Mode is the resolution policy used for subresources.
	Mode string `json:"mode"`

	// OutputPath is where the artifact was written. Empty for stdout.
	OutputPath string `json:"output_path,omitempty"`

	// Bytes is the size of the serialized root document.
	Bytes int `json:"bytes"`

	// Digest is the SHA3-256 digest of the serialized root document.
	Digest string `json:"digest"`

	// Resources counts resolved subresources per resource type.
	Resources map[string]int `json:"resources"`

	// Failures lists subresources left pointing at their original URL.
	Failures []Failure `json:"failures,omitempty"`

	// Error is set when the capture failed as a whole.
	Error string `json:"error,omitempty"`
}

// Failure is a subresource that could not be archived.
type Failure struct {
	URL   string `json:"url"`
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewCapture returns an empty capture of url.
func NewCapture(id, url string, started time.Time) *Capture {
	return &Capture{
		ID:        id,
		URL:       url,
		StartedAt: started,
		Resources: make(map[string]int),
	}
}

// Duration returns how long the capture took.
func (c *Capture) Duration() time.Duration {
	if c.FinishedAt.IsZero() {
		return 0
	}
	return c.FinishedAt.Sub(c.StartedAt)
}

// Succeeded reports whether an artifact was produced.
func (c *Capture) Succeeded() bool {
	return c.Error == ""
}

// TotalResources returns the number of resolved subresources.
func (c *Capture) TotalResources() int {
	total := 0
	for _, n := range c.Resources {
		total += n
	}
	return total
}

// ResourceTypes returns the resource types present, sorted.
func (c *Capture) ResourceTypes() []string {
	types := make([]string, 0, len(c.Resources))
	for t := range c.Resources {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
