package shop

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

// Storage column names of the orders table.
const (
	ColID          = "id"
	ColExternalRef = "external_ref"
	ColTotal       = "total"
	ColStatus      = "status"
	ColCreatedAt   = "created_at"
	ColPriority    = "priority"
)

// Domain field names used in criteria.
const (
	FieldID          = "id"
	FieldExternalRef = "externalRef"
	FieldTotal       = "total"
	FieldStatus      = "status"
	FieldCreatedAt   = "createdAt"
	FieldPriority    = "priority"
)

// OrdersTable is the name of the orders table.
const OrdersTable = "orders"

// Columns lists the orders table columns.
var Columns = []string{ColID, ColExternalRef, ColTotal, ColStatus, ColCreatedAt, ColPriority}

// ErrUnexpectedEntity is returned when the mapper is handed an entity it does not map.
var ErrUnexpectedEntity = errors.New("unexpected entity type")

// ErrInvalidColumnValue is returned when a stored value can not be converted to the field type.
var ErrInvalidColumnValue = errors.New("invalid column value")

// OrderMapper maps Order and PriorityOrder to rows of the orders table.
// A row with a priority becomes a PriorityOrder.
type OrderMapper struct {
	datamapper.BaseMapper
}

// NewOrderMapper creates an OrderMapper with the external reference as unique index.
func NewOrderMapper() *OrderMapper {
	return &OrderMapper{
		BaseMapper: datamapper.NewBaseMapper(
			map[string]string{
				FieldID:          ColID,
				FieldExternalRef: ColExternalRef,
				FieldTotal:       ColTotal,
				FieldStatus:      ColStatus,
				FieldCreatedAt:   ColCreatedAt,
				FieldPriority:    ColPriority,
			},
			FieldExternalRef,
		),
	}
}

// Kind returns the Order kind with PriorityOrder as its subtype.
func (m *OrderMapper) Kind() datamapper.Kind {
	return datamapper.Kind{Name: KindOrder, Subtypes: []string{KindPriorityOrder}}
}

// Instantiate returns an empty PriorityOrder when the record carries a priority, an empty Order otherwise.
func (m *OrderMapper) Instantiate(record datamapper.Record) (datamapper.Entity, error) {
	if priority, ok := record[ColPriority]; ok && priority != nil {
		return &PriorityOrder{}, nil
	}

	return &Order{}, nil
}

// Hydrate copies the record's columns into an Order or PriorityOrder.
func (m *OrderMapper) Hydrate(entity datamapper.Entity, record datamapper.Record) error {
	var order *Order

	switch e := entity.(type) {
	case *Order:
		order = e
	case *PriorityOrder:
		order = &e.Order

		if value, ok := record[ColPriority]; ok && value != nil {
			priority, err := toInt64(ColPriority, value)
			if err != nil {
				return err
			}

			e.Priority = priority
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnexpectedEntity, entity)
	}

	return hydrateOrder(order, record)
}

func hydrateOrder(order *Order, record datamapper.Record) error {
	var err error

	if value, ok := record[ColID]; ok && value != nil {
		if order.ID, err = toInt64(ColID, value); err != nil {
			return err
		}
	}

	if value, ok := record[ColExternalRef]; ok && value != nil {
		if order.ExternalRef, err = toUUID(value); err != nil {
			return err
		}
	}

	if value, ok := record[ColTotal]; ok && value != nil {
		if order.Total, err = toInt64(ColTotal, value); err != nil {
			return err
		}
	}

	if value, ok := record[ColStatus]; ok && value != nil {
		status, isString := value.(string)
		if !isString {
			return fmt.Errorf("%w: %s is %T", ErrInvalidColumnValue, ColStatus, value)
		}

		order.Status = status
	}

	if value, ok := record[ColCreatedAt]; ok && value != nil {
		createdAt, isTime := value.(time.Time)
		if !isTime {
			return fmt.Errorf("%w: %s is %T", ErrInvalidColumnValue, ColCreatedAt, value)
		}

		order.CreatedAt = createdAt.UTC()
	}

	return nil
}

// Extract returns the storage record of an Order or PriorityOrder.
func (m *OrderMapper) Extract(entity datamapper.Entity) (datamapper.Record, error) {
	switch e := entity.(type) {
	case *Order:
		return extractOrder(e, nil), nil
	case *PriorityOrder:
		return extractOrder(&e.Order, e.Priority), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedEntity, entity)
	}
}

func extractOrder(order *Order, priority any) datamapper.Record {
	return datamapper.Record{
		ColID:          order.ID,
		ColExternalRef: order.ExternalRef.String(),
		ColTotal:       order.Total,
		ColStatus:      order.Status,
		ColCreatedAt:   order.CreatedAt,
		ColPriority:    priority,
	}
}

// ValueToStorage stores external references as text.
func (m *OrderMapper) ValueToStorage(field string, domainValue any) (any, error) {
	if field == FieldExternalRef {
		if ref, ok := domainValue.(uuid.UUID); ok {
			return ref.String(), nil
		}
	}

	return domainValue, nil
}

// ValueToDomain parses stored external references.
func (m *OrderMapper) ValueToDomain(field string, storageValue any) (any, error) {
	if field == FieldExternalRef && storageValue != nil {
		return toUUID(storageValue)
	}

	return storageValue, nil
}

func toInt64(column string, value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrInvalidColumnValue, column, value)
	}
}

func toUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case [16]byte:
		return uuid.UUID(v), nil
	default:
		return uuid.Nil, fmt.Errorf("%w: %s is %T", ErrInvalidColumnValue, ColExternalRef, value)
	}
}
