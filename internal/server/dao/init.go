package dao

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/model"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects to the configured database and migrates the schema.
func OpenDB(conf common.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch conf.DBDriver {
	case "mysql":
		dialector = mysql.Open(MySQLDSN(conf))
	case "postgres":
		dialector = postgres.Open(PostgresDSN(conf))
	case "sqlite", "":
		dialector = sqlite.Open(conf.DBPath)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", conf.DBDriver)
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if conf.LogLevel == "debug" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if conf.DBDriver == "sqlite" || conf.DBDriver == "" {
		// sqlite has a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Application{}, &model.Pipeline{})
}

func MySQLDSN(conf common.Config) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = conf.DBUser
	cfg.Passwd = conf.DBPassword
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conf.DBHost, strconv.Itoa(conf.DBPort))
	cfg.DBName = conf.DBName
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func PostgresDSN(conf common.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		conf.DBHost, conf.DBPort, conf.DBUser, conf.DBPassword, conf.DBName)
}
