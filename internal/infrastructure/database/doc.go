// Package database provides SQLite connectivity for Parkshare Core:
// connection setup with WAL mode and foreign-key enforcement, embedded
// schema migrations, and health checks.
//
// All queries use parameterised statements, the database file is created
// with 0600 permissions, and the pool is restricted to one connection to
// match SQLite's single-writer model.
package database
