package datamapper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

func Test_Criteria_BuilderMethods_ReturnModifiedCopies(t *testing.T) {
	// arrange
	base := datamapper.NewCriteria().Where(datamapper.Eq("status", "open")).OrderBy("id", datamapper.Ascending)

	// act
	limited := base.WithLimit(10).WithOffset(20).OrderBy("total", datamapper.Descending).Include("note")

	// assert
	_, hasLimit := base.Limit()
	assert.False(t, hasLimit)
	assert.Zero(t, base.Offset())
	assert.Len(t, base.Orderings(), 1)
	assert.Empty(t, base.Includes())

	limit, hasLimit := limited.Limit()
	assert.True(t, hasLimit)
	assert.Equal(t, uint(10), limit)
	assert.Equal(t, uint(20), limited.Offset())
	assert.Equal(t, []datamapper.OrderEntry{
		{Field: "id", Direction: datamapper.Ascending},
		{Field: "total", Direction: datamapper.Descending},
	}, limited.Orderings())
	assert.Equal(t, []string{"note"}, limited.Includes())
}

func Test_Criteria_When_BranchesShareABase_TheyDoNotAffectEachOther(t *testing.T) {
	base := datamapper.NewCriteria().AndWhere(datamapper.Eq("a", 1)).AndWhere(datamapper.Eq("b", 2))

	left := base.AndWhere(datamapper.Eq("c", 3))
	right := base.AndWhere(datamapper.Eq("d", 4))

	leftGroup, ok := left.Expression().(datamapper.Conjunction)
	require.True(t, ok)
	rightGroup, ok := right.Expression().(datamapper.Conjunction)
	require.True(t, ok)

	assert.Equal(t, datamapper.Eq("c", 3), leftGroup.Children[2])
	assert.Equal(t, datamapper.Eq("d", 4), rightGroup.Children[2])
}

func Test_Criteria_AndWhere_And_OrWhere_CombineExpressions(t *testing.T) {
	criteria := datamapper.NewCriteria().
		AndWhere(datamapper.Eq("a", 1)).
		AndWhere(datamapper.Eq("b", 2)).
		OrWhere(datamapper.Eq("c", 3))

	assert.Equal(t,
		datamapper.Or(datamapper.And(datamapper.Eq("a", 1), datamapper.Eq("b", 2)), datamapper.Eq("c", 3)),
		criteria.Expression(),
	)
	assert.Nil(t, datamapper.NewCriteria().Expression())
}

type pageableSpy struct {
	limit  *uint
	offset *uint
}

func (p *pageableSpy) Limit(limit uint) {
	p.limit = &limit
}

func (p *pageableSpy) Offset(offset uint) {
	p.offset = &offset
}

func Test_PagePaginator(t *testing.T) {
	testCases := []struct {
		name           string
		paginator      datamapper.PagePaginator
		expectedLimit  *uint
		expectedOffset *uint
	}{
		{name: "first page", paginator: datamapper.PagePaginator{Page: 1, PerPage: 10}, expectedLimit: uintPtr(10)},
		{name: "page zero is the first page", paginator: datamapper.PagePaginator{Page: 0, PerPage: 10}, expectedLimit: uintPtr(10)},
		{name: "third page", paginator: datamapper.PagePaginator{Page: 3, PerPage: 10}, expectedLimit: uintPtr(10), expectedOffset: uintPtr(20)},
		{name: "disabled", paginator: datamapper.PagePaginator{Page: 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target := &pageableSpy{}

			tc.paginator.Paginate(target)

			assert.Equal(t, tc.expectedLimit, target.limit)
			assert.Equal(t, tc.expectedOffset, target.offset)
		})
	}
}

func uintPtr(v uint) *uint {
	return &v
}
