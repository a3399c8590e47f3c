package seeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/database/dbtest"
	repo "github.com/casadx/pedidos/internal/repository/pedido"
)

func TestPedidosSeedsOnce(t *testing.T) {
	r := repo.NewRepository(dbtest.New(t))
	s := New(r, zap.NewNop())
	ctx := context.Background()

	n, err := s.Pedidos(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Pedidos(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pedidos, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, pedidos, 3)
	assert.Equal(t, "Dx0003", pedidos[0].Codigo)
	assert.Equal(t, "Tío Carlos", pedidos[0].Familiar)
}
