// Package memengine provides an in-process implementation of the datamapper.Storage collaborator.
//
// Rows are kept in memory in insertion order. Criteria are evaluated with datamapper.Evaluate, so the
// same expressions that the SQL engines reject (for example a negated full text search) are rejected here.
// Transactions are atomic (a failed body restores the rows) but not isolated from concurrent writers.
//
// Usage example:
//
//	storage, _ := memengine.NewStorage([]string{"id"}, memengine.WithAutoIncrement("id"))
//	orders, _ := datamapper.NewRepository(session, shop.NewOrderMapper(), storage)
package memengine
