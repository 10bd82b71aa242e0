package forge

import (
	"fmt"
	"reflect"
	"strings"
)

// Cloner produces a deep copy of a component value. Types that own shared
// state implement it to control what duplication means; plain-data types get
// an assignment cloner automatically.
type Cloner[T any] interface {
	Clone() T
}

// Meta is the registered metadata for one component or resource type: a
// world-stable index, the reflected type, and the function table the
// type-erased stores operate through. A Meta is created at most once per type
// per world and never changes after registration.
type Meta struct {
	index uint32
	typ   reflect.Type
	name  string
	size  uintptr

	allocate  func(capacity int) any
	copy      func(src any, srcRow int, dst any, dstRow int, n int)
	drop      func(data any, row, n int)
	cloner    func(src any, srcRow int, dst any, dstRow int, n int)
	filler    func(src any, srcRow int, dst any, dstRow int, n int)
	defaulter func(data any, row, n int)
	formatter func(data any, row int) string
}

// MetaOption adjusts a Meta at registration time.
type MetaOption func(*Meta)

// NoClone strips the type's cloner, making any segment containing it refuse
// duplication.
func NoClone() MetaOption {
	return func(m *Meta) {
		m.cloner = nil
		m.filler = nil
	}
}

// Index returns the meta's position in the world's metadata order.
func (m *Meta) Index() uint32 {
	return m.index
}

// Type returns the registered reflect.Type.
func (m *Meta) Type() reflect.Type {
	return m.typ
}

// Name returns the type's short display name.
func (m *Meta) Name() string {
	return m.name
}

// Size returns the in-memory size of one value.
func (m *Meta) Size() uintptr {
	return m.size
}

// CanClone reports whether values of this type can be duplicated.
func (m *Meta) CanClone() bool {
	return m.cloner != nil
}

// Format renders the value at row for debug output.
func (m *Meta) Format(data any, row int) string {
	if m.formatter == nil {
		return fmt.Sprintf("%s(?)", m.name)
	}
	return m.formatter(data, row)
}

func (m *Meta) String() string {
	return fmt.Sprintf("Meta(%d:%s)", m.index, m.name)
}

// newMetaFor builds the function table for T. The closures box columns as
// []T so the garbage collector keeps tracking interior pointers.
func newMetaFor[T any](index uint32, opts ...MetaOption) *Meta {
	var zero T
	typ := reflect.TypeOf(&zero).Elem()
	m := &Meta{
		index: index,
		typ:   typ,
		name:  shortTypeName(typ),
		size:  typ.Size(),
		allocate: func(capacity int) any {
			return make([]T, capacity)
		},
		copy: func(src any, srcRow int, dst any, dstRow int, n int) {
			copy(dst.([]T)[dstRow:dstRow+n], src.([]T)[srcRow:srcRow+n])
		},
		drop: func(data any, row, n int) {
			var zero T
			slots := data.([]T)
			for i := row; i < row+n; i++ {
				slots[i] = zero
			}
		},
		defaulter: func(data any, row, n int) {
			var zero T
			slots := data.([]T)
			for i := row; i < row+n; i++ {
				slots[i] = zero
			}
		},
		formatter: func(data any, row int) string {
			return fmt.Sprintf("%+v", data.([]T)[row])
		},
	}

	if _, ok := any(zero).(Cloner[T]); ok {
		m.cloner = func(src any, srcRow int, dst any, dstRow int, n int) {
			source := src.([]T)
			target := dst.([]T)
			for i := 0; i < n; i++ {
				target[dstRow+i] = any(source[srcRow+i]).(Cloner[T]).Clone()
			}
		}
		m.filler = func(src any, srcRow int, dst any, dstRow int, n int) {
			source := src.([]T)
			target := dst.([]T)
			for i := 0; i < n; i++ {
				target[dstRow+i] = any(source[srcRow]).(Cloner[T]).Clone()
			}
		}
	} else {
		m.cloner = m.copy
		m.filler = func(src any, srcRow int, dst any, dstRow int, n int) {
			source := src.([]T)
			target := dst.([]T)
			for i := 0; i < n; i++ {
				target[dstRow+i] = source[srcRow]
			}
		}
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// shortTypeName trims any package path down to the last element, matching
// how component names read in queries and errors.
func shortTypeName(typ reflect.Type) string {
	name := typ.String()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
