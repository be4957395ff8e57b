package naming

import "testing"

func TestLookup_fallbackOrder(t *testing.T) {
	data := map[string]any{
		"Name":       "pascal",
		"townId":     7,
		"districtId": 9,
		"DistrictId": 11,
	}

	if v, ok := Lookup(data, "name"); !ok || v != "pascal" {
		t.Errorf("Lookup(name) = %v, %v", v, ok)
	}
	if v, ok := Lookup(data, "TownId"); !ok || v != 7 {
		t.Errorf("Lookup(TownId) = %v, %v", v, ok)
	}
	// Exact match wins over casing variants.
	if v, ok := Lookup(data, "districtId"); !ok || v != 9 {
		t.Errorf("Lookup(districtId) = %v, %v", v, ok)
	}
	if _, ok := Lookup(data, "missing"); ok {
		t.Error("Lookup(missing) should miss")
	}
	if _, ok := Lookup(nil, "name"); ok {
		t.Error("Lookup on nil map should miss")
	}
}

func TestPathLookup(t *testing.T) {
	data := map[string]any{
		"district": map[string]any{
			"Town": map[string]any{
				"name": "Eastmarch",
			},
		},
	}

	if v, ok := PathLookup(data, "district.town.name"); !ok || v != "Eastmarch" {
		t.Errorf("PathLookup = %v, %v", v, ok)
	}
	if _, ok := PathLookup(data, "district.region.name"); ok {
		t.Error("missing intermediate segment should miss")
	}
	if _, ok := PathLookup(data, "district.town.name.extra"); ok {
		t.Error("traversal into a scalar should miss")
	}
}

func TestForeignKeyName(t *testing.T) {
	if got := ForeignKeyName("District"); got != "districtId" {
		t.Errorf("ForeignKeyName(District) = %q", got)
	}
	if got := ForeignKeyName(""); got != "" {
		t.Errorf("ForeignKeyName(empty) = %q", got)
	}
}

func TestCollectionKeyName(t *testing.T) {
	if got := CollectionKeyName("streets"); got != "streetId" {
		t.Errorf("CollectionKeyName(streets) = %q", got)
	}
	if got := CollectionKeyName("categories"); got != "categoryId" {
		t.Errorf("CollectionKeyName(categories) = %q", got)
	}
	// Only one trailing s is stripped.
	if got := CollectionKeyName("glass"); got != "glasId" {
		t.Errorf("CollectionKeyName(glass) = %q", got)
	}
	if got := CollectionKeyName("gate"); got != "gateId" {
		t.Errorf("CollectionKeyName(gate) = %q", got)
	}
}
