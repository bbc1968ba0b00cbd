package database

import "errors"

var (
	// ErrInvalidConfig missing DSN
	ErrInvalidConfig = errors.New("invalid database config")

	// ErrUnsupportedDriver driver not one of sqlite, mysql, postgres
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrInstanceNotFound no instance registered under the name
	ErrInstanceNotFound = errors.New("database instance not found")
)
