// Package store loads the catalogue snapshots the engine runs on. Loaders
// validate at the boundary so the engine only ever sees products and
// outlets that satisfy the catalogue invariants.
package store

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/kopibot/kopibot/engine/catalog"
)

// LoadProducts reads and validates the JSON product catalogue.
func LoadProducts(path string) ([]catalog.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read product catalogue %s", path)
	}
	return ParseProducts(raw)
}

// ParseProducts decodes a product catalogue from JSON bytes.
func ParseProducts(raw []byte) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, errors.Wrap(err, "failed to decode product catalogue")
	}
	if len(products) == 0 {
		return nil, errors.New("product catalogue is empty")
	}
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid product %q", products[i].Name)
		}
	}
	return products, nil
}

// LoadOutlets reads and validates a JSON outlet seed file, used to populate
// the sqlite registry on first start.
func LoadOutlets(path string) ([]catalog.Outlet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read outlet seed %s", path)
	}
	var outlets []catalog.Outlet
	if err := json.Unmarshal(raw, &outlets); err != nil {
		return nil, errors.Wrap(err, "failed to decode outlet seed")
	}
	for i := range outlets {
		if err := outlets[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid outlet %q", outlets[i].Name)
		}
	}
	return outlets, nil
}
