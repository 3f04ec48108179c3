package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].version)
	assert.Contains(t, migrations[0].content, "signing_processes")
}

func TestLoadMigrations_Ordering(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/10_later.sql":  {Data: []byte("SELECT 10")},
		"migrations/2_second.sql":  {Data: []byte("SELECT 2")},
		"migrations/1_initial.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":     {Data: []byte("notes")},
	}

	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].version, migrations[1].version, migrations[2].version})
}

func TestLoadMigrations_Invalid(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"migrations/initial.sql": {Data: []byte("SELECT 1")}})
	assert.ErrorContains(t, err, "invalid migration file name")

	_, err = loadMigrations(fstest.MapFS{
		"migrations/1_a.sql": {Data: []byte("SELECT 1")},
		"migrations/1_b.sql": {Data: []byte("SELECT 1")},
	})
	assert.ErrorContains(t, err, "duplicate migration version")
}
