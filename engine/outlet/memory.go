package outlet

import (
	"context"

	"github.com/kopibot/kopibot/engine/catalog"
)

// MemoryRegistry serves a fixed outlet list. It backs the JSON catalogue
// path and tests; production deployments use the sqlite registry.
type MemoryRegistry struct {
	outlets []catalog.Outlet
}

// NewMemoryRegistry copies the given outlets.
func NewMemoryRegistry(outlets []catalog.Outlet) *MemoryRegistry {
	return &MemoryRegistry{outlets: append([]catalog.Outlet(nil), outlets...)}
}

func (m *MemoryRegistry) All(ctx context.Context) ([]catalog.Outlet, error) {
	return append([]catalog.Outlet(nil), m.outlets...), nil
}

func (m *MemoryRegistry) ByCity(ctx context.Context, city string) ([]catalog.Outlet, error) {
	var out []catalog.Outlet
	for _, o := range m.outlets {
		if CityMatches(o, city) {
			out = append(out, o)
		}
	}
	return out, nil
}
