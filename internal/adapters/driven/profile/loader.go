// Package profile loads the STAR profile answered over from a file.
package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProfileSource = (*FileSource)(nil)

// FileSource reads a profile from a YAML or JSON file.
// JSON is valid YAML, so one decoder serves both.
type FileSource struct {
	path string
}

// NewFileSource creates a profile source reading path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and validates the profile
func (s *FileSource) Load(_ context.Context) (*domain.Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", s.path, err)
	}
	return p, nil
}

// Parse decodes a profile document and fills in missing item IDs
func Parse(data []byte) (*domain.Profile, error) {
	var p domain.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	p.Owner = strings.TrimSpace(p.Owner)
	p.Role = strings.TrimSpace(p.Role)
	if p.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if len(p.StarItems) == 0 {
		return nil, errors.New("at least one star item is required")
	}

	seen := make(map[string]bool, len(p.StarItems))
	for i := range p.StarItems {
		item := &p.StarItems[i]
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			item.ID = fmt.Sprintf("item-%d", i+1)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("duplicate star item id %q", item.ID)
		}
		seen[item.ID] = true
		if strings.TrimSpace(item.Title) == "" {
			return nil, fmt.Errorf("star item %q has no title", item.ID)
		}
	}
	return &p, nil
}
