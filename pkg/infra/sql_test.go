package infra

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/config"
	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSQLConfig(t *testing.T) {
	cfg := config.Configs{
		MysqlDbName:         "analytics",
		MysqlMasterHost:     "db-master",
		MysqlMasterPort:     3306,
		MysqlMasterUsername: "sweep",
		MysqlMasterPassword: "secret",
		MysqlSlaveHost:      "db-replica",
		MysqlSlaveUsername:  "reader",
	}

	master, slave, err := BuildSQLConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, SQLConfig{Host: "db-master", Port: 3306, DBName: "analytics", Username: "sweep", Password: "secret"}, master)
	assert.Equal(t, "db-replica", slave.Host)
	assert.Equal(t, 3306, slave.Port)
	assert.Equal(t, "analytics", slave.DBName)
}

func TestBuildSQLConfigMissingKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Configs)
	}{
		{"host", func(c *config.Configs) { c.MysqlMasterHost = "" }},
		{"port", func(c *config.Configs) { c.MysqlMasterPort = 0 }},
		{"db", func(c *config.Configs) { c.MysqlDbName = "" }},
		{"username", func(c *config.Configs) { c.MysqlMasterUsername = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Configs{
				MysqlDbName:         "analytics",
				MysqlMasterHost:     "db-master",
				MysqlMasterPort:     3306,
				MysqlMasterUsername: "sweep",
			}
			tt.mutate(&cfg)
			_, _, err := BuildSQLConfig(cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewSQLConnectionSQLite(t *testing.T) {
	cfg := config.Configs{
		WarehouseDriver: config.DriverSQLite,
		SqlitePath:      filepath.Join(t.TempDir(), "warehouse.db"),
	}

	conn, err := NewSQLConnection(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.True(t, conn.IsLive())
	assert.Same(t, conn.GetMaster(), conn.GetSlave())
	meta, err := conn.GetMeta()
	require.NoError(t, err)
	assert.Equal(t, DBTypeSQLite, meta["type"])
	assert.Equal(t, cfg.SqlitePath, meta["db_name"])
}

func TestIsLive(t *testing.T) {
	var conn *SQLConnection
	assert.False(t, conn.IsLive())
	assert.False(t, (&SQLConnection{}).IsLive())

	_, err := (&SQLConnection{}).GetMeta()
	assert.Error(t, err)
}

func TestNewSQLConnectionUnsupportedDriver(t *testing.T) {
	_, err := NewSQLConnection(config.Configs{WarehouseDriver: "bigquery"})
	assert.True(t, errors.Is(err, sweeperrors.ErrUnsupportedDriver))
}
