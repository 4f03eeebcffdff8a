// Package datamapper provides a data-mapper layer between domain objects and a storage engine it
// does not own.
//
// The package contains two engine-independent pieces:
//   - Session: a unit-of-work that guarantees at most one in-memory object per persisted record,
//     keeps a snapshot per tracked entity to compute minimal diffs, and maintains secondary
//     indexes per role for lookups that never hit storage
//   - Repository and Query: orchestration of save/remove/find per role on top of a Storage
//     collaborator, which compiles Criteria into engine-native filters
//
// Key types:
//   - Entity: a domain object, tracked by the identity token of its embedded Identity
//   - Mapper: converts between entities and flat storage Records
//   - Criteria: an immutable, engine-agnostic query description
//   - Expression: a closed boolean tree of Conjunction, Disjunction and Comparison nodes
//
// Common usage pattern:
//
//	session := datamapper.NewSession(datamapper.WithSessionLogger(logger))
//	orders, err := datamapper.NewRepository(session, shop.NewOrderMapper(), storage,
//		datamapper.WithIndexLookup())
//
//	order, err := orders.FindByPrimary(ctx, 1)
//	order.(*shop.Order).Total = 150
//	err = orders.Save(ctx, order) // issues UPDATE ... SET total = 150 WHERE id = 1
//
//	criteria := datamapper.NewCriteria().
//		Where(datamapper.And(
//			datamapper.Gte("total", 100),
//			datamapper.Not(datamapper.In("status", "canceled", "refunded")))).
//		OrderBy("createdAt", datamapper.Descending).
//		WithLimit(20)
//
//	recent, err := orders.FindAll(ctx, criteria)
//
// A Session and its repositories are meant for one unit-of-work (one request, one batch job) and
// must not be shared between goroutines without external synchronization.
package datamapper
