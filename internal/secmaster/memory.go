package secmaster

import (
	"context"

	"github.com/guttosm/isinmap/internal/domain/models"
)

// MemoryRepository serves lookups from rows held in memory, in the order given.
type MemoryRepository struct {
	rows []models.Security
}

func NewMemoryRepository(rows ...models.Security) *MemoryRepository {
	out := make([]models.Security, len(rows))
	copy(out, rows)
	for i := range out {
		if out[i].Line == 0 {
			out[i].Line = i + 1
		}
	}
	return &MemoryRepository{rows: out}
}

func (m *MemoryRepository) FindByISIN(ctx context.Context, isin string) (*models.Security, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, row := range m.rows {
		if row.ISIN == isin {
			sec := row
			return &sec, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }
