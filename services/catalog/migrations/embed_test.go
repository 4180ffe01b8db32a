package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ContainsOrderedMigrations(t *testing.T) {
	names, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_schema.up.sql", "0002_seed.up.sql"}, names)

	schema, err := fs.ReadFile(FS, "0001_schema.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"products", "product_images", "product_flavors", "product_sizes", "product_reviews"} {
		assert.Contains(t, string(schema), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
