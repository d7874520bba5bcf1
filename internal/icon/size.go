package icon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Size is a single icon frame resolution.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// String returns the size in WxH form, e.g. "32x32".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// FitsWithin reports whether the size is no larger than the given dimensions on both axes.
func (s Size) FitsWithin(width, height int) bool {
	return s.Width <= width && s.Height <= height
}

// FallbackSize is used when filtering by source dimensions leaves nothing.
var FallbackSize = Size{Width: 16, Height: 16}

// Catalog returns the icon sizes a user may choose from, smallest first.
func Catalog() []Size {
	return []Size{
		{Width: 16, Height: 16},
		{Width: 32, Height: 32},
		{Width: 48, Height: 48},
		{Width: 64, Height: 64},
		{Width: 128, Height: 128},
	}
}

// InCatalog reports whether s is one of the catalog sizes.
func InCatalog(s Size) bool {
	for _, c := range Catalog() {
		if c == s {
			return true
		}
	}
	return false
}

// ParseSize parses "32", "32x32" or "32X32" into a catalog Size.
func ParseSize(value string) (Size, error) {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return Size{}, fmt.Errorf("empty icon size")
	}

	w, h := raw, raw
	if i := strings.IndexByte(raw, 'x'); i >= 0 {
		w, h = raw[:i], raw[i+1:]
	}

	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return Size{}, fmt.Errorf("invalid icon size %q: %w", value, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return Size{}, fmt.Errorf("invalid icon size %q: %w", value, err)
	}

	s := Size{Width: width, Height: height}
	if !InCatalog(s) {
		return Size{}, fmt.Errorf("unsupported icon size %s (valid: %s)", s, catalogList())
	}
	return s, nil
}

// ParseSizes parses a list of size strings. Entries may themselves be comma separated.
func ParseSizes(values []string) (Selection, error) {
	var sizes []Size
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			s, err := ParseSize(part)
			if err != nil {
				return nil, err
			}
			sizes = append(sizes, s)
		}
	}
	return NewSelection(sizes...), nil
}

func catalogList() string {
	names := make([]string, 0, len(Catalog()))
	for _, s := range Catalog() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

// Selection is an ordered, duplicate free set of sizes.
type Selection []Size

// NewSelection returns the sizes sorted by area with duplicates removed.
func NewSelection(sizes ...Size) Selection {
	seen := make(map[Size]struct{}, len(sizes))
	out := make(Selection, 0, len(sizes))
	for _, s := range sizes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Width != out[j].Width {
			return out[i].Width < out[j].Width
		}
		return out[i].Height < out[j].Height
	})
	return out
}

// Strings returns the sizes in WxH form.
func (sel Selection) Strings() []string {
	out := make([]string, len(sel))
	for i, s := range sel {
		out[i] = s.String()
	}
	return out
}

// String joins the sizes with commas.
func (sel Selection) String() string {
	return strings.Join(sel.Strings(), ",")
}

// Resolve returns the sizes to bake into an icon for a source of the given dimensions.
//
// With filter disabled the requested sizes pass through untouched. With filter
// enabled only sizes that fit within the source are kept, and if none do the
// result is the single FallbackSize.
func Resolve(requested Selection, width, height int, filter bool) Selection {
	if !filter {
		return append(Selection(nil), requested...)
	}

	var kept Selection
	for _, s := range requested {
		if s.FitsWithin(width, height) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return Selection{FallbackSize}
	}
	return kept
}
