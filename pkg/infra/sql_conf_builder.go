package infra

import (
	"errors"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/config"
)

// SQLConfig represents the configuration for a SQL database connection
type SQLConfig struct {
	Host     string
	Port     int
	DBName   string
	Username string
	Password string
}

// BuildSQLConfig constructs the MySQL master and slave configuration.
//
// Mandatory keys:
//   - MYSQL_MASTER_HOST: Master host
//   - MYSQL_MASTER_PORT: Master port
//   - MYSQL_DB_NAME: Database name
//   - MYSQL_MASTER_USERNAME: Master username
//
// Optional keys for slave:
//   - MYSQL_SLAVE_HOST: Slave host
//   - MYSQL_SLAVE_PORT: Slave port, defaults to the master port
//   - MYSQL_SLAVE_USERNAME: Slave username
//   - MYSQL_SLAVE_PASSWORD: Slave password
func BuildSQLConfig(cfg config.Configs) (master SQLConfig, slave SQLConfig, err error) {
	if cfg.MysqlMasterHost == "" {
		return master, slave, errors.New("MYSQL_MASTER_HOST not set")
	}
	if cfg.MysqlMasterPort == 0 {
		return master, slave, errors.New("MYSQL_MASTER_PORT not set")
	}
	if cfg.MysqlDbName == "" {
		return master, slave, errors.New("MYSQL_DB_NAME not set")
	}
	if cfg.MysqlMasterUsername == "" {
		return master, slave, errors.New("MYSQL_MASTER_USERNAME not set")
	}

	master = SQLConfig{
		Host:     cfg.MysqlMasterHost,
		Port:     cfg.MysqlMasterPort,
		DBName:   cfg.MysqlDbName,
		Username: cfg.MysqlMasterUsername,
		Password: cfg.MysqlMasterPassword,
	}

	if cfg.MysqlSlaveHost != "" && cfg.MysqlSlaveUsername != "" {
		slavePort := cfg.MysqlMasterPort
		if cfg.MysqlSlavePort != 0 {
			slavePort = cfg.MysqlSlavePort
		}
		slave = SQLConfig{
			Host:     cfg.MysqlSlaveHost,
			Port:     slavePort,
			DBName:   cfg.MysqlDbName, // Use master DB name by default
			Username: cfg.MysqlSlaveUsername,
			Password: cfg.MysqlSlavePassword,
		}
	}

	return master, slave, nil
}
