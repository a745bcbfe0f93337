package memoryBlob

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"release-registry/blob"
	"release-registry/storage"
)

// MemoryStore implements the blob store interface using in-memory storage.
// Blobs are served over a transient localhost HTTP endpoint that is started on
// first use and released by Close. Used for testing and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	server  *http.Server
	baseURL string
}

var _ blob.Store = (*MemoryStore)(nil)

// New creates a new memory-based blob store.
func New() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Put stores a blob in memory, bounded by maxSizeBytes.
func (s *MemoryStore) Put(_ context.Context, id string, stream io.Reader, maxSizeBytes int64) error {
	content, err := blob.ReadBounded(stream, maxSizeBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = content
	return nil
}

// URL resolves a blob id to a URL on the transient serving endpoint, starting
// the endpoint on first use.
func (s *MemoryStore) URL(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[id]; !exists {
		return "", storage.NewError(storage.ErrNotFound, "Blob %q does not exist", id)
	}
	if err := s.startServerLocked(); err != nil {
		return "", err
	}
	return s.baseURL + "/blobs/" + id, nil
}

// Remove deletes a blob by id.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[id]; !exists {
		return storage.NewError(storage.ErrNotFound, "Blob %q does not exist", id)
	}
	delete(s.blobs, id)
	return nil
}

// Close drops all blobs and shuts the serving endpoint down. Safe to call more
// than once.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.baseURL = ""
	s.blobs = make(map[string][]byte)
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return storage.WrapError(storage.ErrOther, "failed to shut down blob endpoint", err)
	}
	return nil
}

// startServerLocked lazily binds the serving endpoint. Callers hold s.mu.
func (s *MemoryStore) startServerLocked() error {
	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return storage.WrapError(storage.ErrOther, "failed to bind blob endpoint", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/blobs/", s.serveBlob)
	server := &http.Server{Handler: mux}

	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error().Err(serveErr).Msg("blob endpoint terminated")
		}
	}()

	s.server = server
	s.baseURL = fmt.Sprintf("http://%s", listener.Addr())
	log.Debug().Str("base_url", s.baseURL).Msg("transient blob endpoint started")
	return nil
}

func (s *MemoryStore) serveBlob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/blobs/")

	s.mu.RLock()
	content, exists := s.blobs[id]
	s.mu.RUnlock()

	if !exists {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

// Count returns the number of blobs stored (useful for testing).
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
