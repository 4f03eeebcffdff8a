package datamapper

import (
	"errors"
)

var (
	// ErrUnresolvableRole is returned when a role name, entity, mapper or repository can not be mapped to a registered role.
	ErrUnresolvableRole = errors.New("unable to resolve role")

	// ErrRoleConflict is returned when a different repository is already registered for a role.
	ErrRoleConflict = errors.New("repository already registered for role")

	// ErrEmptyRoleName is returned when a role would be registered without a name.
	ErrEmptyRoleName = errors.New("role name must not be empty")

	// ErrInvalidPrimaryKey is returned when a primary key value does not match the arity of the role's primary key.
	ErrInvalidPrimaryKey = errors.New("invalid primary key")

	// ErrNotFound is returned when no entity matches a primary key lookup.
	ErrNotFound = errors.New("entity not found")

	// ErrSaveFailed is returned when the storage engine rejected an insert or update.
	ErrSaveFailed = errors.New("saving entity failed")

	// ErrRemoveFailed is returned when the storage engine rejected a delete.
	ErrRemoveFailed = errors.New("removing entity failed")

	// ErrQueryFailed is returned when the storage engine failed to execute a fetch or count.
	ErrQueryFailed = errors.New("querying entities failed")

	// ErrUnsupportedExpression is returned when an expression can not be represented by the target engine.
	ErrUnsupportedExpression = errors.New("unsupported expression")

	// ErrInvalidOrderField is returned when criteria order by a field the target engine does not know.
	ErrInvalidOrderField = errors.New("invalid order field")

	// ErrMaterializingEntityFailed is returned when a mapper could not build an entity from a record.
	ErrMaterializingEntityFailed = errors.New("materializing entity failed")

	// ErrNilSession is returned when a repository is created without a session.
	ErrNilSession = errors.New("session must not be nil")

	// ErrNilMapper is returned when a repository is created without a mapper.
	ErrNilMapper = errors.New("mapper must not be nil")

	// ErrNilStorage is returned when a repository is created without a storage engine.
	ErrNilStorage = errors.New("storage must not be nil")
)
