// Package postgres implements the store interfaces over PostgreSQL,
// accessed through database/sql with the pgx stdlib driver. Every store
// takes a store.DBTX so it runs identically over a connection pool or an
// open transaction.
package postgres
