// Package postgres provides PostgreSQL implementations of the job and task
// stores, plus the embedded goose migrations that create their schema.
// Connections go through database/sql with the pgx stdlib driver.
package postgres
