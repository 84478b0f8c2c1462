package config

import (
	"image/color"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// Filter recolours a sprite sheet. Background replaces opaque white marker
// pixels, Foreground replaces everything else.
type Filter struct {
	Background color.RGBA
	Foreground color.RGBA
}

// FilterTable maps filter names to their colour pairs.
type FilterTable map[string]Filter

// LoadFilters reads a TOML filter table of the form
//
//	name = [[r, g, b], [r, g, b]]
//
// Any read or shape error is a configuration error.
func LoadFilters(path string) (FilterTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrConfiguration, "read filter table %s: %v", path, err)
	}
	return ParseFilters(b)
}

// ParseFilters decodes a TOML filter table.
func ParseFilters(b []byte) (FilterTable, error) {
	var raw map[string][][]int64
	if err := toml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrapf(types.ErrConfiguration, "parse filter table: %v", err)
	}

	table := make(FilterTable, len(raw))
	for name, pair := range raw {
		if len(pair) != 2 {
			return nil, errors.Wrapf(types.ErrConfiguration, "filter %q: want 2 colours, got %d", name, len(pair))
		}
		bg, err := toRGBA(pair[0])
		if err != nil {
			return nil, errors.Wrapf(err, "filter %q background", name)
		}
		fg, err := toRGBA(pair[1])
		if err != nil {
			return nil, errors.Wrapf(err, "filter %q foreground", name)
		}
		table[name] = Filter{Background: bg, Foreground: fg}
	}
	return table, nil
}

func toRGBA(c []int64) (color.RGBA, error) {
	if len(c) != 3 {
		return color.RGBA{}, errors.Wrapf(types.ErrConfiguration, "want 3 components, got %d", len(c))
	}
	for _, v := range c {
		if v < 0 || v > 255 {
			return color.RGBA{}, errors.Wrapf(types.ErrConfiguration, "component %d out of range", v)
		}
	}
	return color.RGBA{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2]), A: 0xff}, nil
}

// Lookup returns the named filter, or a configuration error if the table has
// no such entry.
func (t FilterTable) Lookup(name string) (Filter, error) {
	f, ok := t[name]
	if !ok {
		return Filter{}, errors.Wrapf(types.ErrConfiguration, "'%s' is not recognized as a filter", name)
	}
	return f, nil
}

// Names returns the filter names in sorted order.
func (t FilterTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResolveFilter loads the filter table and returns the filter selected by the
// options, or nil when no filter was requested. The table is only read when a
// filter is named.
func (o JobOptions) ResolveFilter() (*Filter, error) {
	if o.Filter == "" {
		return nil, nil
	}
	table, err := LoadFilters(o.FiltersPath)
	if err != nil {
		return nil, err
	}
	f, err := table.Lookup(o.Filter)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
