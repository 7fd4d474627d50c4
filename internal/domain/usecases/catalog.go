package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

// DefaultScanLimit bounds catalog scans.
const DefaultScanLimit = 10000

// CatalogUseCase enumerates distinct metadata values stored in the index.
// Enumeration scans at most scanLimit chunks, so values that only occur
// past the limit are missed on very large indexes.
type CatalogUseCase struct {
	index     ports.VectorIndex
	scanLimit int
}

// NewCatalogUseCase creates a CatalogUseCase. A non-positive limit selects DefaultScanLimit.
func NewCatalogUseCase(index ports.VectorIndex, scanLimit int) *CatalogUseCase {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	return &CatalogUseCase{index: index, scanLimit: scanLimit}
}

// Distinct returns the sorted distinct non-empty string values of key.
func (uc *CatalogUseCase) Distinct(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: metadata key is required", entities.ErrInvalidInput)
	}
	resp, err := uc.index.Get(ctx, uc.scanLimit, nil)
	if err != nil {
		return nil, indexError("scanning index", err)
	}

	seen := make(map[string]struct{})
	for _, m := range resp.Metadatas {
		s, ok := m[key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		seen[s] = struct{}{}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

// Categories lists the distinct document categories.
func (uc *CatalogUseCase) Categories(ctx context.Context) ([]string, error) {
	return uc.Distinct(ctx, entities.MetaCategory)
}

// Cases lists the distinct case identifiers.
func (uc *CatalogUseCase) Cases(ctx context.Context) ([]string, error) {
	return uc.Distinct(ctx, entities.MetaCaseID)
}
