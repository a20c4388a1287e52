package model

// ArchiveFormatZip is the only supported archive format
const ArchiveFormatZip = "zip"

// ArchiveRequest describes one archive build
type ArchiveRequest struct {
	RepoSlug string // falls back to the client's default slug when empty
	Prefix   string // prepended to every entry name, one leading "/" is stripped
	Format   string // "" or "zip"
}

// SkippedDirectory records a directory whose listing failed in lenient mode
type SkippedDirectory struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ArchiveResult represents a finished archive. The file at Path belongs to
// the caller and is never removed by the builder.
type ArchiveResult struct {
	Path        string             `json:"path"`
	Entries     []string           `json:"entries"`
	Directories int                `json:"directories"` // tree listings requested, root included
	Size        int64              `json:"size"`        // uncompressed bytes written
	Complete    bool               `json:"complete"`
	Skipped     []SkippedDirectory `json:"skipped,omitempty"`
}

// ArchiveJob is an asynchronous archive build whose output goes to the archive store
type ArchiveJob struct {
	ID       string `json:"id"`
	RepoSlug string `json:"repo_slug"`
	Key      string `json:"key"`
}
