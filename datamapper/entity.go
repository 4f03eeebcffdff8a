package datamapper

import (
	"slices"
	"sync/atomic"
)

// tokenSequence hands out identity tokens that are unique for the whole process,
// so an entity moved between sessions can never collide with another entity's token.
var tokenSequence atomic.Uint64

// Entity is a domain object managed by a Session.
//
// Identity is reference identity: the same object means the same persisted record, never value equality.
// Implementations must be pointers to structs embedding Identity.
//
//	type Order struct {
//		datamapper.Identity
//		ID    int64
//		Total int64
//	}
//
//	func (o *Order) EntityKind() string { return "Order" }
type Entity interface {
	EntityKind() string
	identity() *Identity
}

// Identity carries the tracking token a Session assigns to an entity at its first attach.
// Copying a struct that embeds Identity copies the token, so entities must not be copied by value.
type Identity struct {
	token uint64
}

func (i *Identity) identity() *Identity {
	return i
}

// tokenOf returns the entity's identity token, allocating one if the entity never had one.
func tokenOf(entity Entity) uint64 {
	id := entity.identity()
	if id.token == 0 {
		id.token = tokenSequence.Add(1)
	}

	return id.token
}

// peekToken returns the entity's identity token without allocating one.
func peekToken(entity Entity) uint64 {
	return entity.identity().token
}

// Kind is the capability descriptor of an entity kind: its own name plus the names of the kinds
// that should resolve to the same role when they are not registered themselves.
type Kind struct {
	Name     string
	Subtypes []string
}

// Accepts reports whether kind is this kind or one of its declared subtypes.
func (k Kind) Accepts(kind string) bool {
	return k.Name == kind || slices.Contains(k.Subtypes, kind)
}
