package datamapper

import (
	"slices"
)

// Direction is the sort direction of one order entry.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// String returns the SQL keyword for the direction.
func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}

	return "ASC"
}

// OrderEntry is one field of the criteria ordering, in the domain vocabulary.
type OrderEntry struct {
	Field     string
	Direction Direction
}

// Criteria is an immutable, engine-agnostic query description.
// All builder methods return a modified copy; the zero value matches everything.
type Criteria struct {
	where     Expression
	orderBy   []OrderEntry
	limit     *uint
	offset    uint
	paginator Paginator
	include   []string
}

// NewCriteria returns empty Criteria matching every entity.
func NewCriteria() Criteria {
	return Criteria{}
}

// Where replaces the criteria expression.
func (c Criteria) Where(expression Expression) Criteria {
	c.where = expression

	return c
}

// AndWhere combines the existing expression with expression in a Conjunction.
func (c Criteria) AndWhere(expression Expression) Criteria {
	switch existing := c.where.(type) {
	case nil:
		c.where = expression
	case Conjunction:
		c.where = Conjunction{Children: append(slices.Clip(existing.Children), expression)}
	default:
		c.where = And(existing, expression)
	}

	return c
}

// OrWhere combines the existing expression with expression in a Disjunction.
func (c Criteria) OrWhere(expression Expression) Criteria {
	switch existing := c.where.(type) {
	case nil:
		c.where = expression
	case Disjunction:
		c.where = Disjunction{Children: append(slices.Clip(existing.Children), expression)}
	default:
		c.where = Or(existing, expression)
	}

	return c
}

// OrderBy appends an order entry. Entries are applied in the order they were added.
func (c Criteria) OrderBy(field string, direction Direction) Criteria {
	c.orderBy = append(slices.Clip(c.orderBy), OrderEntry{Field: field, Direction: direction})

	return c
}

// WithLimit sets the maximum number of results.
func (c Criteria) WithLimit(limit uint) Criteria {
	c.limit = &limit

	return c
}

// WithOffset sets the number of results to skip.
func (c Criteria) WithOffset(offset uint) Criteria {
	c.offset = offset

	return c
}

// WithPaginator delegates limit and offset to the paginator; explicit limit and offset are then ignored.
func (c Criteria) WithPaginator(paginator Paginator) Criteria {
	c.paginator = paginator

	return c
}

// Include adds fields to project in addition to the default selection.
func (c Criteria) Include(fields ...string) Criteria {
	c.include = append(slices.Clip(c.include), fields...)

	return c
}

// Expression returns the criteria expression, or nil when all entities match.
func (c Criteria) Expression() Expression {
	return c.where
}

// Orderings returns the order entries.
func (c Criteria) Orderings() []OrderEntry {
	return slices.Clone(c.orderBy)
}

// Limit returns the limit and whether one was set.
func (c Criteria) Limit() (uint, bool) {
	if c.limit == nil {
		return 0, false
	}

	return *c.limit, true
}

// Offset returns the offset.
func (c Criteria) Offset() uint {
	return c.offset
}

// Paginator returns the paginator or nil.
func (c Criteria) Paginator() Paginator {
	return c.paginator
}

// Includes returns the additional fields to project.
func (c Criteria) Includes() []string {
	return slices.Clone(c.include)
}

/***** Pagination *****/

// Pageable is a query that a Paginator can limit.
type Pageable interface {
	Limit(limit uint)
	Offset(offset uint)
}

// Paginator applies limit and offset to a query on behalf of Criteria.
type Paginator interface {
	Paginate(target Pageable)
}

// PagePaginator paginates with 1-based page numbers.
type PagePaginator struct {
	Page    uint
	PerPage uint
}

// Paginate applies the page window. Page 0 is treated as page 1; PerPage 0 disables pagination.
func (p PagePaginator) Paginate(target Pageable) {
	if p.PerPage == 0 {
		return
	}

	page := max(p.Page, 1)

	target.Limit(p.PerPage)

	if offset := (page - 1) * p.PerPage; offset > 0 {
		target.Offset(offset)
	}
}
