package shop_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/datamapper/memengine"
	"github.com/AntonStoeckl/datamapper-go/example/shop"
)

func Test_OrderMapper_Instantiate_PicksTheSubtypeFromThePriority(t *testing.T) {
	mapper := shop.NewOrderMapper()

	plain, err := mapper.Instantiate(datamapper.Record{shop.ColPriority: nil})
	require.NoError(t, err)
	priority, err := mapper.Instantiate(datamapper.Record{shop.ColPriority: int64(2)})
	require.NoError(t, err)

	assert.IsType(t, &shop.Order{}, plain)
	assert.IsType(t, &shop.PriorityOrder{}, priority)
}

func Test_OrderMapper_Hydrate_And_Extract(t *testing.T) {
	// arrange
	mapper := shop.NewOrderMapper()
	ref := uuid.New()
	createdAt := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	record := datamapper.Record{
		shop.ColID:          int32(7),
		shop.ColExternalRef: ref.String(),
		shop.ColTotal:       int64(1999),
		shop.ColStatus:      shop.StatusPaid,
		shop.ColCreatedAt:   createdAt,
		shop.ColPriority:    int64(3),
	}
	order := &shop.PriorityOrder{}

	// act
	err := mapper.Hydrate(order, record)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.ID)
	assert.Equal(t, ref, order.ExternalRef)
	assert.Equal(t, int64(1999), order.Total)
	assert.Equal(t, shop.StatusPaid, order.Status)
	assert.Equal(t, time.UTC, order.CreatedAt.Location())
	assert.True(t, createdAt.Equal(order.CreatedAt))
	assert.Equal(t, int64(3), order.Priority)

	// act
	extracted, err := mapper.Extract(order)

	// assert
	require.NoError(t, err)
	assert.Equal(t, ref.String(), extracted[shop.ColExternalRef])
	assert.Equal(t, int64(3), extracted[shop.ColPriority])
	assert.Empty(t, extracted.Diff(record), "extracting a hydrated order must reproduce the record")
}

func Test_OrderMapper_Extract_When_OrderIsPlain_HasNoPriority(t *testing.T) {
	extracted, err := shop.NewOrderMapper().Extract(shop.NewOrder(100, time.Now()))

	require.NoError(t, err)
	assert.Contains(t, extracted, shop.ColPriority)
	assert.Nil(t, extracted[shop.ColPriority])
}

func Test_OrderMapper_When_ColumnValueHasTheWrongType_FailsWithInvalidColumnValue(t *testing.T) {
	testCases := []struct {
		name   string
		record datamapper.Record
	}{
		{name: "total", record: datamapper.Record{shop.ColTotal: "lots"}},
		{name: "status", record: datamapper.Record{shop.ColStatus: 1}},
		{name: "created_at", record: datamapper.Record{shop.ColCreatedAt: "yesterday"}},
		{name: "external_ref", record: datamapper.Record{shop.ColExternalRef: 42}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := shop.NewOrderMapper().Hydrate(&shop.Order{}, tc.record)

			assert.ErrorIs(t, err, shop.ErrInvalidColumnValue)
		})
	}
}

func Test_OrderMapper_When_EntityIsForeign_FailsWithUnexpectedEntity(t *testing.T) {
	mapper := shop.NewOrderMapper()

	_, extractErr := mapper.Extract(&foreignEntity{})
	hydrateErr := mapper.Hydrate(&foreignEntity{}, datamapper.Record{})

	assert.ErrorIs(t, extractErr, shop.ErrUnexpectedEntity)
	assert.ErrorIs(t, hydrateErr, shop.ErrUnexpectedEntity)
}

func Test_OrderMapper_ConvertsExternalReferences(t *testing.T) {
	mapper := shop.NewOrderMapper()
	ref := uuid.New()

	stored, err := mapper.ValueToStorage(shop.FieldExternalRef, ref)
	require.NoError(t, err)
	restored, err := mapper.ValueToDomain(shop.FieldExternalRef, stored)
	require.NoError(t, err)
	untouched, err := mapper.ValueToStorage(shop.FieldTotal, int64(5))
	require.NoError(t, err)

	assert.Equal(t, ref.String(), stored)
	assert.Equal(t, ref, restored)
	assert.Equal(t, int64(5), untouched)
}

func Test_OrderRepository_FindsOrdersByExternalReference(t *testing.T) {
	// arrange
	ctx := context.Background()
	storage, err := memengine.NewStorage([]string{shop.ColID}, memengine.WithAutoIncrement(shop.ColID))
	require.NoError(t, err)
	repository, err := datamapper.NewRepository(datamapper.NewSession(), shop.NewOrderMapper(), storage, datamapper.WithExpressionLookup())
	require.NoError(t, err)

	order := shop.NewOrder(100, time.Now())
	priority := shop.NewPriorityOrder(200, 1, time.Now())
	require.NoError(t, repository.Save(ctx, order))
	require.NoError(t, repository.Save(ctx, priority))

	// act
	found, ok, err := repository.FindOne(ctx, datamapper.NewCriteria().Where(datamapper.Eq(shop.FieldExternalRef, priority.ExternalRef)))

	// assert
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, priority, found)
	assert.Equal(t, []int64{1, 2}, []int64{order.ID, priority.ID})
}

type foreignEntity struct {
	datamapper.Identity
}

func (f *foreignEntity) EntityKind() string {
	return "Foreign"
}
