package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	require.NoError(t, Load(""))

	c := Get()
	assert.Equal(t, "dev", c.AppEnv)
	assert.Equal(t, 168*time.Hour, c.ImportRetention)
	assert.Equal(t, time.Hour, c.BatchSweepInterval)
	assert.Equal(t, 4, c.DuplicateCheckWorkers)
	assert.Equal(t, 24*time.Hour, c.IdempotencyTTL)
	assert.Empty(t, c.RedisAddr)
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "POSTGRES_WRITE_HOST=db.internal\nPOSTGRES_WRITE_DBNAME=ledger\nIMPORT_RETENTION=72h\nDUPLICATE_CHECK_WORKERS=0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"POSTGRES_WRITE_HOST", "POSTGRES_WRITE_DBNAME", "IMPORT_RETENTION", "DUPLICATE_CHECK_WORKERS"} {
			os.Unsetenv(k)
		}
	})

	require.NoError(t, Load(path))

	c := Get()
	assert.Equal(t, 72*time.Hour, c.ImportRetention)
	assert.Equal(t, 1, c.DuplicateCheckWorkers)
	assert.Equal(t, "db.internal", c.PostgresWrite().Host)
	assert.Equal(t, "ledger", c.PostgresWrite().Database)
	assert.Equal(t, "disable", c.PostgresWrite().SSLMode)
	assert.Equal(t, 20, c.PostgresRead().MaxOpenConns)
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration file")
}
