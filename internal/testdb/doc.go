// Package testdb provides helpers for tests that run against a real
// PostgreSQL database.
//
// Tests using it belong behind the integration build tag and are skipped
// when neither DATABASE_URL nor SLIDEGEN_TEST_DB_URL is set. OpenTestDB
// applies the embedded migrations before handing out the connection, and
// WithTx runs a test inside a transaction that is always rolled back.
package testdb
