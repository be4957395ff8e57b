package display

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/kingscribe/chancery/internal/naming"
	"github.com/kingscribe/chancery/model"
)

const placeholderDash = "-"

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// formatter renders values for one request's locale and timezone.
type formatter struct {
	printer *message.Printer
	zone    *time.Location
}

func newFormatter(rctx *model.RequestContext) *formatter {
	tag := language.English
	if rctx != nil && rctx.Locale != "" {
		if parsed, err := language.Parse(rctx.Locale); err == nil {
			tag = parsed
		}
	}
	zone := time.UTC
	if rctx != nil && rctx.Timezone != "" {
		if loc, err := time.LoadLocation(rctx.Timezone); err == nil {
			zone = loc
		}
	}
	return &formatter{printer: message.NewPrinter(tag), zone: zone}
}

// Format renders a value per the field's declared type. Nil renders as
// a dash placeholder; unknown types fall back to string coercion.
func (f *formatter) Format(v any, fieldType string) string {
	if v == nil {
		return placeholderDash
	}
	switch strings.ToLower(fieldType) {
	case "datetime":
		if t, ok := f.parseTime(v); ok {
			return f.printer.Sprintf("%s", t.In(f.zone).Format("Jan 2, 2006 15:04"))
		}
	case "date":
		if t, ok := f.parseTime(v); ok {
			return f.printer.Sprintf("%s", t.In(f.zone).Format("Jan 2, 2006"))
		}
	case "integer", "number", "decimal":
		if n, ok := numericValue(v); ok {
			return f.printer.Sprintf("%v", number.Decimal(n))
		}
	case "boolean":
		if b, ok := v.(bool); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	}
	if s, ok := v.(string); ok && s == "" {
		return placeholderDash
	}
	return fmt.Sprintf("%v", v)
}

func (f *formatter) parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return parsed, err == nil
	}
	return 0, false
}

// interpolate replaces {name} placeholders with the named property's
// value from the source object. Unresolvable placeholders render empty.
func interpolate(template string, source map[string]any, f *formatter) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := naming.Lookup(source, name)
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
}
