// Package dbtest provides migrated in-memory SQLite connections for tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/config"
	"github.com/casadx/pedidos/internal/database"
	"github.com/casadx/pedidos/internal/migration"
)

var seq atomic.Int64

// Config returns the database settings for a fresh named in-memory database.
func Config(t testing.TB) config.Config {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))
	return config.Config{
		Database: config.Database{
			Driver:       "sqlite",
			WriterDSN:    dsn,
			ReaderDSN:    dsn,
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
	}
}

// New opens a migrated SQLite database bound to the test lifecycle.
func New(t testing.TB) *database.Connections {
	t.Helper()

	lc := fxtest.NewLifecycle(t)
	conns, err := database.New(lc, Config(t), zap.NewNop())
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(func() { lc.RequireStop() })

	mig, err := migration.New(conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	return conns
}
