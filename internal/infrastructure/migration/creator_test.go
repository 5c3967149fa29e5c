package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/igianni84/erp-crurated-new-sub006/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"add vouchers index": "add_vouchers_index",
		"Add-Vouchers-Index": "add_vouchers_index",
		"ADD__VOUCHERS":      "add_vouchers",
		"   spaces   ":       "spaces",
		"special!@#$chars":   "specialchars",
		"_leading_trailing_": "leading_trailing",
		"":                   "",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, sanitizeName(input), input)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add vouchers index", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, "000001_add_vouchers_index", first.Name)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- add vouchers index")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback of 000001_add_vouchers_index")

	second, err := CreateMigration(dir, "drop legacy column", "Drop the legacy column")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, filepath.Join(dir, "000002_drop_legacy_column.up.sql"), second.UpPath)

	_, err = CreateMigration(dir, "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("orders by version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000002_b.up.sql":   {},
			"000002_b.down.sql": {},
			"000001_a.up.sql":   {},
			"000001_a.down.sql": {},
			"README.md":         {},
		}
		list, err := ListMigrations(fsys)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "000001_a", list[0].Name)
		assert.Equal(t, "000002_b", list[1].Name)
	})

	t.Run("missing down file", func(t *testing.T) {
		_, err := ListMigrations(fstest.MapFS{"000001_a.up.sql": {}})
		assert.Error(t, err)
	})

	t.Run("conflicting names for one version", func(t *testing.T) {
		_, err := ListMigrations(fstest.MapFS{
			"000001_a.up.sql":   {},
			"000001_b.down.sql": {},
		})
		assert.Error(t, err)
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	for i, mf := range list {
		assert.Equal(t, uint(i+1), mf.Version, "versions are contiguous")
	}

	schema, err := migrations.FS.ReadFile("000004_create_voucher_transfers.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(schema), "CREATE UNIQUE INDEX idx_transfer_one_pending ON voucher_transfers (voucher_id) WHERE status = 'pending'")
}
