package model

// RemoteTreeNode is one directory listing returned by the source endpoint
type RemoteTreeNode struct {
	Node        string     `json:"node"`
	Path        string     `json:"path"`
	Directories []string   `json:"directories"`
	Files       []TreeFile `json:"files"`
}

// TreeFile is a file descriptor in a directory listing. Path is relative to
// the repository root, not to the listed directory.
type TreeFile struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Revision  string `json:"revision"`
	Timestamp string `json:"timestamp"`
}
