// Package media defines shared types for the vidgrab application.
package media

import "time"

// Resolved is the outcome of a successful resolution strategy: a direct
// media URL plus whatever metadata the upstream endpoint exposed.
// Direct URLs are typically short-lived/signed and are downloaded exactly
// once, never cached across requests.
type Resolved struct {
	DirectURL  string // URL serving the raw video bytes
	Caption    string // Post caption/description, may be empty
	Author     string // Author handle or display name, may be empty
	Soundtrack string // Sound/music name (TikTok), may be empty
	Quality    string // e.g. "HD", "720p"; empty if unknown
}

// Download describes a media file stored on local disk. Ownership
// transfers to the caller on return; the retention sweeper may still
// delete the file once it ages out, so deleting an already-gone file
// is treated as success everywhere.
type Download struct {
	Path       string
	Platform   Platform
	SizeBytes  int64
	CreatedAt  time.Time
	Caption    string
	Author     string
	Soundtrack string
}
