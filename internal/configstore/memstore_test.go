package configstore

import (
	"context"
	"testing"

	"github.com/kingscribe/chancery/model"
)

func TestMemoryFormStore_crud(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFormStore()

	cfg := model.FormConfiguration{
		ID:                "f1",
		EntityName:        "Town",
		ConfigurationName: "Town Basics",
		IsActive:          true,
	}
	if err := s.Create(ctx, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, cfg); err == nil {
		t.Error("duplicate Create should conflict")
	}

	got, err := s.GetByID(ctx, "f1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ConfigurationName != "Town Basics" {
		t.Errorf("name = %q", got.ConfigurationName)
	}

	cfg.ConfigurationName = "Town Extended"
	if err := s.Update(ctx, cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = s.GetByID(ctx, "f1")
	if got.ConfigurationName != "Town Extended" {
		t.Errorf("name after update = %q", got.ConfigurationName)
	}

	if err := s.Delete(ctx, "f1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(ctx, "f1"); err == nil {
		t.Error("GetByID after delete should be NOT_FOUND")
	}
	if err := s.Delete(ctx, "f1"); err == nil {
		t.Error("second Delete should be NOT_FOUND")
	}
}

func TestMemoryFormStore_GetDefault_notFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFormStore()

	_ = s.Create(ctx, model.FormConfiguration{ID: "f1", EntityName: "Town"})

	_, err := s.GetDefault(ctx, "Town")
	envelope, ok := err.(*model.ErrorEnvelope)
	if !ok || envelope.Code != model.ErrNotFound {
		t.Errorf("err = %v, want NOT_FOUND envelope", err)
	}
}

func TestMemoryFormStore_GetDefault_caseInsensitiveEntityType(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFormStore()

	_ = s.Create(ctx, model.FormConfiguration{ID: "f1", EntityName: "Town", IsDefault: true})

	got, err := s.GetDefault(ctx, "town")
	if err != nil {
		t.Fatalf("GetDefault: %v", err)
	}
	if got.ID != "f1" {
		t.Errorf("got %q", got.ID)
	}
}

func TestMemoryFormStore_GetAll_filtersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFormStore()

	_ = s.Create(ctx, model.FormConfiguration{ID: "a", EntityName: "Town", ConfigurationName: "Zeta"})
	_ = s.Create(ctx, model.FormConfiguration{ID: "b", EntityName: "Town", ConfigurationName: "Alpha"})
	_ = s.Create(ctx, model.FormConfiguration{ID: "c", EntityName: "Gate", ConfigurationName: "Gates"})

	got, err := s.GetAll(ctx, "Town")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(got) != 2 || got[0].ConfigurationName != "Alpha" {
		t.Errorf("got %+v", got)
	}

	all, _ := s.GetAll(ctx, "")
	if len(all) != 3 {
		t.Errorf("unfiltered len = %d", len(all))
	}
}

func TestMemoryFormStore_ListEntityTypes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFormStore()

	_ = s.Create(ctx, model.FormConfiguration{ID: "a", EntityName: "Town"})
	_ = s.Create(ctx, model.FormConfiguration{ID: "b", EntityName: "Town"})
	_ = s.Create(ctx, model.FormConfiguration{ID: "c", EntityName: "Gate"})

	types, err := s.ListEntityTypes(ctx)
	if err != nil {
		t.Fatalf("ListEntityTypes: %v", err)
	}
	if len(types) != 2 || types[0] != "Gate" || types[1] != "Town" {
		t.Errorf("types = %v", types)
	}
}

func TestMemoryDisplayStore_crud(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDisplayStore()

	cfg := model.DisplayConfiguration{
		ID:             "d1",
		Name:           "Town Card",
		EntityTypeName: "Town",
		IsDefault:      true,
	}
	if err := s.Create(ctx, cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.GetDefault(ctx, "Town")
	if err != nil {
		t.Fatalf("GetDefault: %v", err)
	}
	if got.ID != "d1" {
		t.Errorf("got %q", got.ID)
	}

	if err := s.Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetDefault(ctx, "Town"); err == nil {
		t.Error("GetDefault after delete should be NOT_FOUND")
	}
}
