package filesystemBlob

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"release-registry/blob"
	"release-registry/storage"
)

// FilesystemStore implements the blob store interface using simple filesystem
// storage. URLs are either rooted at a configured base URL (when an external
// server fronts the directory) or file:// paths for local setups.
type FilesystemStore struct {
	baseDir string
	baseURL string
}

var _ blob.Store = (*FilesystemStore)(nil)

// New creates a new filesystem-based blob store rooted at baseDir.
func New(baseDir, baseURL string) (*FilesystemStore, error) {
	//nolint:gosec,mnd // Directory permissions 0755 are intentional
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, storage.WrapError(storage.ErrOther, "failed to create blob directory", err)
	}

	return &FilesystemStore{baseDir: baseDir, baseURL: baseURL}, nil
}

// Put stores a blob on disk, bounded by maxSizeBytes.
func (s *FilesystemStore) Put(_ context.Context, id string, stream io.Reader, maxSizeBytes int64) error {
	content, err := blob.ReadBounded(stream, maxSizeBytes)
	if err != nil {
		return err
	}

	//nolint:mnd // filemode constant
	if err := os.WriteFile(s.blobPath(id), content, 0o644); err != nil {
		return storage.WrapError(storage.ErrOther, "failed to write blob", err)
	}
	return nil
}

// URL resolves a blob id to its retrieval URL.
func (s *FilesystemStore) URL(_ context.Context, id string) (string, error) {
	path := s.blobPath(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", storage.NewError(storage.ErrNotFound, "Blob %q does not exist", id)
		}
		return "", storage.WrapError(storage.ErrOther, "failed to stat blob", err)
	}

	if s.baseURL != "" {
		return s.baseURL + "/" + id, nil
	}
	return "file://" + path, nil
}

// Remove deletes a blob by id.
func (s *FilesystemStore) Remove(_ context.Context, id string) error {
	if err := os.Remove(s.blobPath(id)); err != nil {
		if os.IsNotExist(err) {
			return storage.NewError(storage.ErrNotFound, "Blob %q does not exist", id)
		}
		return storage.WrapError(storage.ErrOther, "failed to remove blob", err)
	}
	return nil
}

// Close is a no-op; the filesystem store holds no transient resources.
func (s *FilesystemStore) Close(context.Context) error {
	return nil
}

// blobPath returns the file path for a blob. Ids are backend-generated hashes,
// never caller-supplied paths.
func (s *FilesystemStore) blobPath(id string) string {
	return filepath.Join(s.baseDir, id)
}
