// Package mapper converts area rings into H3 cell coverage.
package mapper

import (
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

type Interface interface {
	CellsForRing(ring model.Ring, res int) ([]string, error)
	// Coarsen maps cells to their unique ancestors at res.
	Coarsen(cells []string, res int) ([]string, error)
}
