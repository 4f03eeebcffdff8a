// Package shop is a small order domain used by the demo and the tests.
//
// It shows how entities embed datamapper.Identity, how a mapper embeds datamapper.BaseMapper for name
// translation and converts values (uuid.UUID <-> text), and how a subkind (PriorityOrder) resolves to
// the role of its parent kind.
package shop
