package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"calcweb/internal/domain"
)

//go:embed operations.yaml
var defaultCatalog []byte

type catalogFile struct {
	Operations []struct {
		Type     string `yaml:"type"`
		Label    string `yaml:"label"`
		Cost     string `yaml:"cost"`
		Operands int    `yaml:"operands"`
	} `yaml:"operations"`
}

// LoadCatalog reads the operation catalog from path, or the built-in catalog
// when path is empty.
func LoadCatalog(path string) (domain.Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Catalog{}, fmt.Errorf("read operations file: %w", err)
		}
		raw = data
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (domain.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse operations: %w", err)
	}
	specs := make([]domain.OperationSpec, 0, len(file.Operations))
	for _, op := range file.Operations {
		cost := decimal.Zero
		if op.Cost != "" {
			c, err := decimal.NewFromString(op.Cost)
			if err != nil {
				return domain.Catalog{}, fmt.Errorf("operation %q: invalid cost %q: %w", op.Type, op.Cost, err)
			}
			cost = c
		}
		specs = append(specs, domain.OperationSpec{
			Type:     domain.OperationType(op.Type),
			Label:    op.Label,
			Cost:     cost,
			Operands: op.Operands,
		})
	}
	return domain.NewCatalog(specs)
}

// MustDefaultCatalog returns the built-in catalog and panics if it is broken.
func MustDefaultCatalog() domain.Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}
