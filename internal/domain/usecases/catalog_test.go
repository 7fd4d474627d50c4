package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
	"github.com/0xcro3dile/sibila-go/internal/domain/ports"
)

func TestCatalogUseCase_Distinct(t *testing.T) {
	idx := &mockIndex{getResp: &ports.GetResponse{Metadatas: []map[string]any{
		{"category": "penal", "case_id": "STS 1/2020"},
		{"category": "civil"},
		{"category": "penal", "case_id": "STS 1/2020"},
		{"category": "  "},
		{"category": int64(3)},
		{},
		nil,
	}}}
	uc := NewCatalogUseCase(idx, 0)
	ctx := context.Background()

	cats, err := uc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"civil", "penal"}, cats)
	assert.Equal(t, DefaultScanLimit, idx.lastLimit)

	cases, err := uc.Cases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"STS 1/2020"}, cases)

	none, err := uc.Distinct(ctx, "tribunal")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCatalogUseCase_ScanLimit(t *testing.T) {
	idx := &mockIndex{getResp: &ports.GetResponse{}}
	uc := NewCatalogUseCase(idx, 50)
	_, err := uc.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, idx.lastLimit)
}

func TestCatalogUseCase_Errors(t *testing.T) {
	uc := NewCatalogUseCase(&mockIndex{err: errors.New("down")}, 0)
	_, err := uc.Categories(context.Background())
	assert.ErrorIs(t, err, entities.ErrIndexUnavailable)

	_, err = uc.Distinct(context.Background(), "")
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}
