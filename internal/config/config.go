package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MasterServer holds all configuration for the lobby master server.
type MasterServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Protocol version accepted during the handshake, element-wise.
	AcceptedVersion []int `yaml:"accepted_version"`

	// Database
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultMasterServer returns MasterServer config with sensible defaults.
func DefaultMasterServer() MasterServer {
	return MasterServer{
		BindAddress:     "0.0.0.0",
		Port:            9112,
		AcceptedVersion: []int{0, 3, 1},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "openage",
			Password: "openage",
			DBName:   "openage",
			SSLMode:  "disable",
		},
	}
}

// LoadMasterServer loads master server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadMasterServer(path string) (MasterServer, error) {
	cfg := DefaultMasterServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
