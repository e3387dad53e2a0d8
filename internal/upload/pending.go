package upload

import (
	"fmt"
	"path/filepath"
	"strings"
	gosync "sync"

	"github.com/google/uuid"

	"github.com/nhle/bugtracker/internal/model"
)

// PendingSet is the ordered list of images chosen for a bug before it is
// submitted. It is transient and never persisted.
type PendingSet struct {
	mu    gosync.Mutex
	items []model.PendingImage
}

// NewPendingSet returns an empty selection.
func NewPendingSet() *PendingSet {
	return &PendingSet{}
}

// Add loads path and appends it. Files that are not images are refused with
// ErrNotImage; oversized images are accepted here and rejected at upload.
func (s *PendingSet) Add(path string) (model.PendingImage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return model.PendingImage{}, ErrInvalidFile
	}

	img, err := LoadFile(path)
	if err != nil {
		return model.PendingImage{}, err
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return model.PendingImage{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotImage)
	}

	p := model.PendingImage{
		ID:       uuid.NewString(),
		Path:     path,
		Name:     img.Name,
		MIMEType: img.MIMEType,
		Size:     img.ByteSize(),
		Data:     img.Data,
		Preview:  Describe(img),
	}

	s.mu.Lock()
	s.items = append(s.items, p)
	s.mu.Unlock()

	return p, nil
}

// AddAll adds every path and returns the errors for the ones refused.
func (s *PendingSet) AddAll(paths []string) []error {
	var errs []error
	for _, p := range paths {
		if _, err := s.Add(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Remove drops the entry with the given id. It reports whether one was found.
func (s *PendingSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns a snapshot of the selection in insertion order.
func (s *PendingSet) Items() []model.PendingImage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PendingImage, len(s.items))
	copy(out, s.items)
	return out
}

// Images returns the selection as upload inputs, in insertion order.
func (s *PendingSet) Images() []Image {
	items := s.Items()
	out := make([]Image, len(items))
	for i, item := range items {
		out[i] = FromPending(item)
	}
	return out
}

// Len returns the number of selected images.
func (s *PendingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear empties the selection.
func (s *PendingSet) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}
