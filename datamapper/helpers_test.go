package datamapper_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/datamapper/memengine"
	"github.com/AntonStoeckl/datamapper-go/testutil/helper"
)

// ticket is a minimal entity with a string external reference, mapped to id / external_ref / total.
type ticket struct {
	datamapper.Identity

	ID          int64
	ExternalRef string
	Total       int64
}

func (t *ticket) EntityKind() string {
	return "Order"
}

type ticketMapper struct {
	datamapper.BaseMapper
}

func newTicketMapper() *ticketMapper {
	return &ticketMapper{
		BaseMapper: datamapper.NewBaseMapper(
			map[string]string{"id": "id", "externalRef": "external_ref", "total": "total"},
			"externalRef",
		),
	}
}

func (m *ticketMapper) Kind() datamapper.Kind {
	return datamapper.Kind{Name: "Order"}
}

func (m *ticketMapper) Instantiate(datamapper.Record) (datamapper.Entity, error) {
	return &ticket{}, nil
}

var errUnexpectedEntity = errors.New("unexpected entity")

func (m *ticketMapper) Hydrate(entity datamapper.Entity, record datamapper.Record) error {
	t, ok := entity.(*ticket)
	if !ok {
		return errUnexpectedEntity
	}

	if v, ok := record["id"].(int64); ok {
		t.ID = v
	}

	if v, ok := record["id"].(int); ok {
		t.ID = int64(v)
	}

	if v, ok := record["external_ref"].(string); ok {
		t.ExternalRef = v
	}

	if v, ok := record["total"].(int64); ok {
		t.Total = v
	}

	if v, ok := record["total"].(int); ok {
		t.Total = int64(v)
	}

	return nil
}

func (m *ticketMapper) Extract(entity datamapper.Entity) (datamapper.Record, error) {
	t, ok := entity.(*ticket)
	if !ok {
		return nil, errUnexpectedEntity
	}

	return datamapper.Record{"id": t.ID, "external_ref": t.ExternalRef, "total": t.Total}, nil
}

// lineItem has a composite primary key (order_id, line_no).
type lineItem struct {
	datamapper.Identity

	OrderID  int64
	LineNo   int64
	Quantity int64
}

func (l *lineItem) EntityKind() string {
	return "LineItem"
}

type lineItemMapper struct {
	datamapper.BaseMapper
}

func newLineItemMapper() *lineItemMapper {
	return &lineItemMapper{
		BaseMapper: datamapper.NewBaseMapper(map[string]string{"orderId": "order_id", "lineNo": "line_no"}),
	}
}

func (m *lineItemMapper) Kind() datamapper.Kind {
	return datamapper.Kind{Name: "LineItem"}
}

func (m *lineItemMapper) Instantiate(datamapper.Record) (datamapper.Entity, error) {
	return &lineItem{}, nil
}

func (m *lineItemMapper) Hydrate(entity datamapper.Entity, record datamapper.Record) error {
	l, ok := entity.(*lineItem)
	if !ok {
		return errUnexpectedEntity
	}

	l.OrderID, _ = record["order_id"].(int64)
	l.LineNo, _ = record["line_no"].(int64)
	l.Quantity, _ = record["quantity"].(int64)

	return nil
}

func (m *lineItemMapper) Extract(entity datamapper.Entity) (datamapper.Record, error) {
	l, ok := entity.(*lineItem)
	if !ok {
		return nil, errUnexpectedEntity
	}

	return datamapper.Record{"order_id": l.OrderID, "line_no": l.LineNo, "quantity": l.Quantity}, nil
}

// givenTicketRepository wires a ticket repository over an in-memory storage wrapped in a StorageSpy.
func givenTicketRepository(
	t *testing.T,
	session *datamapper.Session,
	rows []datamapper.Record,
	options ...datamapper.Option,
) (*datamapper.Repository, *helper.StorageSpy) {

	t.Helper()

	storage, err := memengine.NewStorage(
		[]string{"id"},
		memengine.WithAutoIncrement("id"),
		memengine.WithColumns("id", "external_ref", "total"),
		memengine.WithRows(rows...),
	)
	require.NoError(t, err, "error in arranging test storage")

	spy := helper.NewStorageSpy(storage)

	repository, err := datamapper.NewRepository(session, newTicketMapper(), spy, options...)
	require.NoError(t, err, "error in arranging test repository")

	return repository, spy
}

// givenLineItemRepository wires a line item repository with a composite primary key.
func givenLineItemRepository(t *testing.T, session *datamapper.Session) (*datamapper.Repository, *helper.StorageSpy) {
	t.Helper()

	storage, err := memengine.NewStorage([]string{"order_id", "line_no"})
	require.NoError(t, err, "error in arranging test storage")

	spy := helper.NewStorageSpy(storage)

	repository, err := datamapper.NewRepository(session, newLineItemMapper(), spy)
	require.NoError(t, err, "error in arranging test repository")

	return repository, spy
}
