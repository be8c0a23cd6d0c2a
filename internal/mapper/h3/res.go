package h3mapper

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"
)

// ToParent maps a cell to its ancestor at parentRes.
func (m *Mapper) ToParent(cell string, parentRes int) (string, error) {
	if err := validateRes(parentRes); err != nil {
		return "", err
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}

	if !c.IsValid() {
		return "", fmt.Errorf("invalid h3 cell %q", cell)
	}
	curRes := c.Resolution()
	if parentRes > curRes {
		return "", fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, curRes)
	}
	if parentRes == curRes {
		return cell, nil
	}

	p, err := c.Parent(parentRes)
	if err != nil {
		return "", fmt.Errorf("h3 parent: %w", err)
	}
	return p.String(), nil
}

// Coarsen maps cells to their unique ancestors at res, sorted. It keeps
// export event payloads small for large areas.
func (m *Mapper) Coarsen(cells []string, res int) ([]string, error) {
	seen := make(map[string]struct{}, len(cells))
	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		p, err := m.ToParent(cell, res)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
