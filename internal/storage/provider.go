// Package storage defines the workspace file-system abstraction: the saved
// board and uploaded image assets live under one root directory.
package storage

import "time"

// FileInfo describes a stored file.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Provider is the interface for workspace file operations. Paths are
// relative to the workspace root.
type Provider interface {
	// List returns metadata for files under dir, optionally restricted to
	// the given extensions (".png").
	List(dir string, exts ...string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
