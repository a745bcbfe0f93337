package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	assert.NoError(t, Load())

	assert.Equal(t, 3000, Cfg.Port)
	assert.Equal(t, "info", Cfg.LogLevel)
	assert.Equal(t, "memory", Cfg.Storage.Type)
	assert.Equal(t, "memory", Cfg.Blob.Type)
	assert.Equal(t, "localhost", Cfg.Database.Host)
	assert.Equal(t, 5432, Cfg.Database.Port)
	assert.Equal(t, "disable", Cfg.Database.SSLMode)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REGISTRY_PORT", "8080")
	t.Setenv("REGISTRY_STORAGE_TYPE", "postgres")
	t.Setenv("REGISTRY_DATABASE_HOST", "db.internal")
	t.Setenv("REGISTRY_BLOB_TYPE", "filesystem")

	assert.NoError(t, Load())

	assert.Equal(t, 8080, Cfg.Port)
	assert.Equal(t, "postgres", Cfg.Storage.Type)
	assert.Equal(t, "db.internal", Cfg.Database.Host)
	assert.Equal(t, "filesystem", Cfg.Blob.Type)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("REGISTRY_PORT", "99999")

	assert.Error(t, Load())
}
