// Package naming centralizes the casing conventions used when binding
// configuration field names to backend entity payloads. Configuration
// authors type field names in whatever casing the backend schema shows
// them, while JSON payloads generally arrive camelCased; every lookup
// in the module funnels through here so the fallback order stays
// identical everywhere.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pascal upper-cases the first rune of name.
func Pascal(name string) string {
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Camel lower-cases the first rune of name.
func Camel(name string) string {
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// Lookup resolves name against data, trying the name as written, then
// PascalCase, then camelCase. The second return reports whether any of
// the three variants hit.
func Lookup(data map[string]any, name string) (any, bool) {
	if data == nil || name == "" {
		return nil, false
	}
	if v, ok := data[name]; ok {
		return v, true
	}
	if v, ok := data[Pascal(name)]; ok {
		return v, true
	}
	if v, ok := data[Camel(name)]; ok {
		return v, true
	}
	return nil, false
}

// PathLookup resolves a dotted path such as "district.town.name",
// applying the Lookup casing fallback at every segment. Traversal stops
// with ok=false as soon as a segment is missing or the intermediate
// value is not an object.
func PathLookup(data map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = data
	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = Lookup(obj, seg)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ForeignKeyName derives the scalar foreign-key field for a navigation
// field: "district" becomes "districtId".
func ForeignKeyName(navigationField string) string {
	if navigationField == "" {
		return ""
	}
	return Camel(navigationField) + "Id"
}

// CollectionKeyName derives the singular foreign-key field for a
// collection field: "streets" becomes "streetId", "categories" becomes
// "categoryId". Names without a plural suffix pass through
// ForeignKeyName unchanged.
func CollectionKeyName(collectionField string) string {
	singular := collectionField
	if strings.HasSuffix(singular, "ies") {
		singular = singular[:len(singular)-3] + "y"
	} else {
		singular = strings.TrimSuffix(singular, "s")
	}
	return ForeignKeyName(singular)
}
