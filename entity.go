package forge

import (
	"fmt"
	"math"
)

// Entity is a lightweight handle to a world entity: a table index paired with
// a generation that disambiguates reuse of the index. The zero value is the
// first entity ever allocated; use Null() for "no entity".
type Entity struct {
	index      uint32
	generation uint32
}

// Null returns the sentinel entity that refers to nothing.
func Null() Entity {
	return Entity{index: math.MaxUint32, generation: math.MaxUint32}
}

// NewEntity builds a handle from raw parts.
func NewEntity(index, generation uint32) Entity {
	return Entity{index: index, generation: generation}
}

// Index returns the entity's slot in the entity table.
func (e Entity) Index() uint32 {
	return e.index
}

// Generation returns the reuse counter of the entity's slot.
func (e Entity) Generation() uint32 {
	return e.generation
}

// IsNull reports whether the handle is the null sentinel.
func (e Entity) IsNull() bool {
	return e.index == math.MaxUint32 && e.generation == math.MaxUint32
}

func (e Entity) String() string {
	if e.IsNull() {
		return "Entity(null)"
	}
	return fmt.Sprintf("Entity(%d:%d)", e.index, e.generation)
}
