package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMasterServerMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadMasterServer(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMasterServer(), cfg)
}

func TestLoadMasterServerParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masterserver.yaml")
	data := `
port: 4242
accepted_version: [0, 4, 0]
database:
  host: db.example.com
  dbname: lobby
  user: lobby
  password: secret
  port: 5433
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadMasterServer(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Port)
	assert.Equal(t, []int{0, 4, 0}, cfg.AcceptedVersion)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	// Unset keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.BindAddress)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoadMasterServerRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masterserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a port"), 0o644))

	_, err := LoadMasterServer(path)
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p",
		DBName: "lobby", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@localhost:5432/lobby?sslmode=disable", d.DSN())
}
