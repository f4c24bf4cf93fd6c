package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidFilename is returned for names that would escape the provider root.
var ErrInvalidFilename = errors.New("storage: invalid filename")

// Provider persists rendered downloads.
type Provider interface {
	Save(ctx context.Context, input SaveInput) (SaveOutput, error)
	Delete(ctx context.Context, input DeleteInput) error
	Exists(ctx context.Context, filename string) (bool, error)
	List(ctx context.Context, input ListInput) ([]FileInfo, error)
	Name() string
}

// SaveInput describes one file to write.
type SaveInput struct {
	File        io.Reader
	Filename    string
	Folder      string
	ContentType string
	Size        int64
}

// SaveOutput describes a written file.
type SaveOutput struct {
	Path        string
	URL         string
	Filename    string
	ContentType string
	Size        int64
}

type DeleteInput struct {
	Filename string
	Folder   string
}

type ListInput struct {
	Folder string
	Prefix string
	Limit  int
}

// FileInfo describes a stored file.
type FileInfo struct {
	Name      string
	Size      int64
	IsDir     bool
	UpdatedAt int64
}
