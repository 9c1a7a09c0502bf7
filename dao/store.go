package dao

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/model"
)

type Store struct {
	DB  *gorm.DB
	Log *logrus.Entry
}

var StoreInstance *Store

var PrimaryKeyUnspecifiedErr = errors.New("primary key unspecified")

func IsDuplicated(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsSerializationFailure reports errors after which the whole transaction may be retried.
func IsSerializationFailure(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		// deadlock found, lock wait timeout
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func (dao *Store) db(ctx context.Context) *gorm.DB {
	return dao.DB.WithContext(ctx)
}

type describer interface {
	Description() string
}

// Migrate creates or updates every table through gorm.
func (dao *Store) Migrate() error {
	for _, t := range model.Tables {
		if d, ok := t.(describer); ok {
			dao.Log.Debugf("[dao] migrate %T: %s", t, d.Description())
		}
	}
	return dao.DB.AutoMigrate(model.Tables...)
}

// Reset drops and recreates the schema. Only meant for tests and local setups.
func (dao *Store) Reset() error {
	tables := make([]interface{}, 0, len(model.Tables)+len(model.JoinTables))
	for _, t := range model.JoinTables {
		tables = append(tables, t)
	}
	tables = append(tables, model.Tables...)
	if err := dao.DB.Migrator().DropTable(tables...); err != nil {
		return err
	}
	return dao.Migrate()
}

func notFoundOr(err error, what string) error {
	if IsNotFound(err) {
		return common.NotFound(what)
	}
	return err
}
