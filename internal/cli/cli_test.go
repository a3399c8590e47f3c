package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestMigrateAndSeed(t *testing.T) {
	color.NoColor = true
	dsn := filepath.Join(t.TempDir(), "pedidos.db") + "?_pragma=foreign_keys(1)"
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_WRITER_DSN", dsn)
	t.Setenv("DB_READER_DSN", "")
	t.Setenv("OBS_LOG_LEVEL", "error")

	assert.Contains(t, run(t, "migrate", "up"), "migrations applied (version 1)")
	assert.Contains(t, run(t, "seed"), "seeded 3 pedidos")
	assert.Contains(t, run(t, "seed"), "nothing seeded")
	assert.Contains(t, run(t, "migrate", "status"), "version 1")
}

func TestRootCommandListsSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range NewRootCommand().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "migrate", "seed"} {
		assert.True(t, names[want], want)
	}
}
