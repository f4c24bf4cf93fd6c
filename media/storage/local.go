package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalProvider implements Provider on the local filesystem.
type LocalProvider struct {
	basePath string
	baseURL  string
}

// NewLocalProvider creates a new local storage provider
func NewLocalProvider(basePath, baseURL string) (*LocalProvider, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalProvider{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (p *LocalProvider) Name() string {
	return "local"
}

// resolve joins folder and filename under the base path and rejects anything
// that would land outside it.
func (p *LocalProvider) resolve(folder, filename string) (string, string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	rel := filepath.Join(folder, filename)
	if !filepath.IsLocal(rel) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFilename, rel)
	}
	return filepath.Join(p.basePath, rel), filepath.ToSlash(rel), nil
}

// Save writes the file through a temporary sibling and renames it into place,
// so readers never observe a partial download.
func (p *LocalProvider) Save(ctx context.Context, input SaveInput) (SaveOutput, error) {
	if err := ctx.Err(); err != nil {
		return SaveOutput{}, err
	}
	if input.File == nil {
		return SaveOutput{}, fmt.Errorf("storage: no content for %q", input.Filename)
	}

	fullPath, rel, err := p.resolve(input.Folder, input.Filename)
	if err != nil {
		return SaveOutput{}, err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SaveOutput{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+input.Filename+".*")
	if err != nil {
		return SaveOutput{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, input.File)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return SaveOutput{}, fmt.Errorf("failed to write file content: %w", err)
	}
	if input.Size > 0 && size != input.Size {
		return SaveOutput{}, fmt.Errorf("storage: wrote %d bytes, expected %d", size, input.Size)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return SaveOutput{}, fmt.Errorf("failed to move file into place: %w", err)
	}

	return SaveOutput{
		Path:        fullPath,
		URL:         p.baseURL + "/" + rel,
		Filename:    input.Filename,
		ContentType: input.ContentType,
		Size:        size,
	}, nil
}

// Delete removes a file from the local filesystem
func (p *LocalProvider) Delete(ctx context.Context, input DeleteInput) error {
	fullPath, _, err := p.resolve(input.Folder, input.Filename)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if a file exists
func (p *LocalProvider) Exists(ctx context.Context, filename string) (bool, error) {
	fullPath, _, err := p.resolve(filepath.Dir(filename), filepath.Base(filename))
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// List returns the files in a folder whose names start with Prefix, sorted by name.
func (p *LocalProvider) List(ctx context.Context, input ListInput) ([]FileInfo, error) {
	if input.Folder != "" && !filepath.IsLocal(input.Folder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, input.Folder)
	}
	folder := filepath.Join(p.basePath, input.Folder)

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []FileInfo
	for _, entry := range entries {
		if input.Limit > 0 && len(files) >= input.Limit {
			break
		}
		if strings.HasPrefix(entry.Name(), ".") || !strings.HasPrefix(entry.Name(), input.Prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			IsDir:     entry.IsDir(),
			UpdatedAt: info.ModTime().Unix(),
		})
	}

	return files, nil
}
