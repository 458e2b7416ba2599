package infra

import (
	"errors"
	"fmt"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/config"
	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DBType string

const (
	DBTypeMySQL  DBType = "mysql"
	DBTypeSQLite DBType = "sqlite"
)

// SQLConnection encapsulates warehouse connections with master/slave setup.
// Reads go to the slave when one is configured; writes always go to master.
type SQLConnection struct {
	Master *gorm.DB
	Slave  *gorm.DB
	Meta   map[string]interface{}
}

// GetMeta returns metadata about the connection
func (c *SQLConnection) GetMeta() (map[string]interface{}, error) {
	if c.Meta == nil {
		return nil, errors.New("meta is nil")
	}
	return c.Meta, nil
}

// GetMaster returns the master database connection
func (c *SQLConnection) GetMaster() *gorm.DB {
	return c.Master
}

// GetSlave returns the slave database connection
// If no slave is configured, it returns the master connection
func (c *SQLConnection) GetSlave() *gorm.DB {
	if c.Slave != nil {
		return c.Slave
	}
	return c.Master
}

// IsLive reports whether a master connection is open. It is safe on a nil
// connection.
func (c *SQLConnection) IsLive() bool {
	return c != nil && c.Master != nil
}

// Close closes the underlying pools.
func (c *SQLConnection) Close() error {
	var errs []error
	for _, db := range []*gorm.DB{c.Master, c.Slave} {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

// NewSQLConnection opens the warehouse configured by cfg.
func NewSQLConnection(cfg config.Configs) (*SQLConnection, error) {
	switch cfg.WarehouseDriver {
	case config.DriverMySQL:
		return newMySQLConnection(cfg)
	case config.DriverSQLite:
		db, err := CreateSQLiteConnection(cfg.SqlitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SqlitePath).Msg("Connected to sqlite warehouse")
		return &SQLConnection{
			Master: db,
			Meta: map[string]interface{}{
				"db_name": cfg.SqlitePath,
				"type":    DBTypeSQLite,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedDriver, cfg.WarehouseDriver)
	}
}

func newMySQLConnection(cfg config.Configs) (*SQLConnection, error) {
	masterConfig, slaveConfig, err := BuildSQLConfig(cfg)
	if err != nil {
		return nil, err
	}
	master, err := CreateMySQLConnection(masterConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to mysql master: %w", err)
	}
	var slave *gorm.DB
	if slaveConfig.Host != "" {
		slave, err = CreateMySQLConnection(slaveConfig)
		if err != nil {
			// Continue with master only if slave connection fails
			log.Error().Err(err).Msg("Failed to connect to slave, will use master only")
		} else {
			log.Info().Msg("Connected to slave")
		}
	}
	return &SQLConnection{
		Master: master,
		Slave:  slave,
		Meta: map[string]interface{}{
			"db_name": masterConfig.DBName,
			"type":    DBTypeMySQL,
		},
	}, nil
}

// CreateMySQLConnection creates a MySQL connection from SQLConfig. Times are
// read and written in UTC so DATE partitions line up with sweep dates.
func CreateMySQLConnection(config SQLConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		config.Username, config.Password, config.Host, config.Port, config.DBName)

	return gorm.Open(mysql.Open(dsn), gormConfig())
}

// CreateSQLiteConnection opens a file backed sqlite database.
func CreateSQLiteConnection(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}
