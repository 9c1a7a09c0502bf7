// Package migration applies the versioned MySQL schema shipped with the binary.
package migration

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// New builds a migrator for the mysql database at dsn (go-sql-driver format).
func New(dsn string) (*migrate.Migrate, error) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("[migration] iofs.New err: %v", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, "mysql://"+dsn)
	if err != nil {
		return nil, fmt.Errorf("[migration] migrate.NewWithSourceInstance err: %v", err)
	}
	return m, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func Up(dsn string) error {
	m, err := New(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("[migration] Up err: %v", err)
	}
	return nil
}

// Versions lists the migrations embedded in the binary.
func Versions() ([]uint, error) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return nil, err
	}
	defer source.Close()
	versions := make([]uint, 0)
	v, err := source.First()
	for err == nil {
		versions = append(versions, v)
		v, err = source.Next(v)
	}
	return versions, nil
}
