package persistence

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/migrations"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	files := fstest.MapFS{
		"002_more.sql": {Data: []byte("SELECT 2;")},
		"001_init.sql": {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("docs")},
		"sub/003.sql":  {Data: []byte("SELECT 3;")},
	}
	names, err := migrationFiles(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_more.sql"}, names)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := migrationFiles(migrations.FS)
	require.NoError(t, err)
	assert.Contains(t, names, "001_init.sql")
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, migrations.FS, zap.NewNop()))
}

func TestAuthorReferencesKeepAuditRows(t *testing.T) {
	raw, err := fs.ReadFile(migrations.FS, "001_init.sql")
	require.NoError(t, err)

	var authorRefs int
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "user_id") {
			continue
		}
		authorRefs++
		assert.Contains(t, line, "REFERENCES users(id) ON DELETE NO ACTION", line)
		assert.NotContains(t, line, "CASCADE", line)
	}
	assert.Equal(t, 2, authorRefs, "ticket_history and ticket_messages")
}
