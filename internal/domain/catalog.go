package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OperationSpec describes one priced operation offered to the user.
type OperationSpec struct {
	Type     OperationType   `json:"type"`
	Label    string          `json:"label"`
	Cost     decimal.Decimal `json:"cost"`
	Operands int             `json:"operands"`
}

// NeedsSecondOperand reports whether input2 belongs on the wire.
func (s OperationSpec) NeedsSecondOperand() bool {
	return s.Operands >= 2
}

// Catalog is the ordered set of operations the client offers.
type Catalog struct {
	specs []OperationSpec
	index map[OperationType]int
}

func NewCatalog(specs []OperationSpec) (Catalog, error) {
	if len(specs) == 0 {
		return Catalog{}, fmt.Errorf("operation catalog is empty")
	}
	c := Catalog{
		specs: make([]OperationSpec, 0, len(specs)),
		index: make(map[OperationType]int, len(specs)),
	}
	for _, spec := range specs {
		if spec.Type == "" {
			return Catalog{}, fmt.Errorf("operation without type")
		}
		if _, dup := c.index[spec.Type]; dup {
			return Catalog{}, fmt.Errorf("duplicate operation %q", spec.Type)
		}
		if spec.Operands != 1 && spec.Operands != 2 {
			return Catalog{}, fmt.Errorf("operation %q: operands must be 1 or 2, got %d", spec.Type, spec.Operands)
		}
		if spec.Cost.IsNegative() {
			return Catalog{}, fmt.Errorf("operation %q: negative cost", spec.Type)
		}
		if spec.Label == "" {
			spec.Label = string(spec.Type)
		}
		c.index[spec.Type] = len(c.specs)
		c.specs = append(c.specs, spec)
	}
	return c, nil
}

func (c Catalog) Lookup(op OperationType) (OperationSpec, bool) {
	i, ok := c.index[op]
	if !ok {
		return OperationSpec{}, false
	}
	return c.specs[i], true
}

func (c Catalog) Operations() []OperationSpec {
	out := make([]OperationSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Default returns the first operation, which preselects the form.
func (c Catalog) Default() OperationType {
	if len(c.specs) == 0 {
		return ""
	}
	return c.specs[0].Type
}
