// Package catalog serves the Minecraft material, block, and enchantment
// catalogs backing CatalogReference pickers. Catalogs are YAML files
// loaded once at startup and read-only afterwards.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kingscribe/chancery/internal/config"
	"github.com/kingscribe/chancery/model"
)

// Item is one catalog entry. An item may carry a numeric id, a
// namespace key, or both; CatalogReference normalization handles either
// being absent.
type Item struct {
	ID           *int64 `yaml:"id,omitempty" json:"id,omitempty"`
	NamespaceKey string `yaml:"namespaceKey,omitempty" json:"namespaceKey,omitempty"`
	DisplayName  string `yaml:"displayName" json:"displayName"`
}

type catalogFile struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

// Service answers catalog listing and search queries.
type Service struct {
	catalogs   map[string][]Item // key: lowercased catalog name
	names      []string
	maxResults int
	log        *zap.Logger
}

// NewService loads every *.yaml file in the configured directory. A
// file that fails to parse fails the load; serving pickers from a
// half-loaded catalog set would silently hide items.
func NewService(cfg config.CatalogConfig, log *zap.Logger) (*Service, error) {
	entries, err := os.ReadDir(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("read catalog directory: %w", err)
	}

	s := &Service{
		catalogs:   make(map[string][]Item),
		maxResults: cfg.MaxResults,
		log:        log,
	}
	if s.maxResults <= 0 {
		s.maxResults = 50
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(cfg.Directory, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", entry.Name(), err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", entry.Name(), err)
		}
		name := file.Name
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		s.catalogs[strings.ToLower(name)] = file.Items
		s.names = append(s.names, name)
		log.Info("loaded catalog",
			zap.String("catalog", name),
			zap.Int("items", len(file.Items)))
	}
	sort.Strings(s.names)
	return s, nil
}

// Catalogs lists the loaded catalog names, sorted.
func (s *Service) Catalogs() []string {
	return s.names
}

// Search returns items matching the query by display name or namespace
// key, case-insensitively. Prefix matches rank before substring
// matches; an empty query returns the catalog head. Results are capped
// at the configured maximum.
func (s *Service) Search(catalogName, query string) ([]Item, error) {
	items, ok := s.catalogs[strings.ToLower(catalogName)]
	if !ok {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("catalog %q not found", catalogName),
		)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		if len(items) > s.maxResults {
			return items[:s.maxResults], nil
		}
		return items, nil
	}

	var prefix, substring []Item
	for _, item := range items {
		name := strings.ToLower(item.DisplayName)
		key := strings.ToLower(item.NamespaceKey)
		switch {
		case strings.HasPrefix(name, q) || strings.HasPrefix(key, q):
			prefix = append(prefix, item)
		case strings.Contains(name, q) || strings.Contains(key, q):
			substring = append(substring, item)
		}
	}

	out := append(prefix, substring...)
	if len(out) > s.maxResults {
		out = out[:s.maxResults]
	}
	return out, nil
}
