package shop

import "fmt"

const createOrdersTable = `CREATE TABLE IF NOT EXISTS %s (
	id           BIGSERIAL PRIMARY KEY,
	external_ref TEXT NOT NULL UNIQUE,
	total        BIGINT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	priority     BIGINT
)`

// CreateOrdersTableStatement returns the DDL creating the orders table under the given name.
func CreateOrdersTableStatement(table string) string {
	return fmt.Sprintf(createOrdersTable, table)
}
