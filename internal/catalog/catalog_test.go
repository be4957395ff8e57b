package catalog

import (
	"testing"

	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/config"
	"github.com/kingscribe/chancery/model"
)

func testService(t *testing.T, maxResults int) *Service {
	t.Helper()
	s, err := NewService(config.CatalogConfig{Directory: "testdata", MaxResults: maxResults}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestService_loadsCatalogs(t *testing.T) {
	s := testService(t, 50)

	names := s.Catalogs()
	if len(names) != 2 || names[0] != "enchantments" || names[1] != "materials" {
		t.Errorf("Catalogs = %v", names)
	}
}

func TestService_searchRanksPrefixFirst(t *testing.T) {
	s := testService(t, 50)

	// "stone" is a prefix of Stone and a substring of Cobblestone.
	items, err := s.Search("materials", "stone")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v, want 2", items)
	}
	if items[0].DisplayName != "Stone" || items[1].DisplayName != "Cobblestone" {
		t.Errorf("order = %q, %q, want prefix match first", items[0].DisplayName, items[1].DisplayName)
	}
}

func TestService_searchMatchesNamespaceKey(t *testing.T) {
	s := testService(t, 50)

	items, err := s.Search("materials", "minecraft:oak")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].DisplayName != "Oak Planks" {
		t.Errorf("items = %+v, want Oak Planks", items)
	}
}

func TestService_searchCaseInsensitive(t *testing.T) {
	s := testService(t, 50)

	items, err := s.Search("Materials", "COBBLE")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].DisplayName != "Cobblestone" {
		t.Errorf("items = %+v", items)
	}
}

func TestService_hybridItems(t *testing.T) {
	s := testService(t, 50)

	deepslate, err := s.Search("materials", "deepslate")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(deepslate) != 1 || deepslate[0].ID != nil || deepslate[0].NamespaceKey != "minecraft:deepslate" {
		t.Errorf("deepslate = %+v, want namespace key only", deepslate)
	}

	glass, err := s.Search("materials", "legacy glass")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(glass) != 1 || glass[0].ID == nil || *glass[0].ID != 5 || glass[0].NamespaceKey != "" {
		t.Errorf("glass = %+v, want id only", glass)
	}
}

func TestService_emptyQueryAndCap(t *testing.T) {
	s := testService(t, 3)

	items, err := s.Search("materials", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want capped at 3", len(items))
	}
}

func TestService_unknownCatalog(t *testing.T) {
	s := testService(t, 50)

	_, err := s.Search("potions", "x")
	env, ok := err.(*model.ErrorEnvelope)
	if !ok || env.Code != model.ErrNotFound {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}
