package forge

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// identifiers hands out process-unique instance identifiers for worlds,
// segments, stores, and scheduled units.
var identifiers atomic.Uint64

func identify() uint64 {
	return identifiers.Add(1)
}

// World owns the metadata registry, the segments, the entity table, and the
// resource stores. Its version increases whenever a meta or segment is
// added; runners watch the version to know when to rebuild their schedules.
type World struct {
	identifier uint64
	version    uint64

	metas      []*Meta
	typeToMeta map[reflect.Type]uint32
	metaNames  Cache[*Meta]

	segments       []*Segment
	segmentsByMask map[mask.Mask]uint32

	resources map[reflect.Type]*Store

	entities *Entities
}

// NewWorld builds an empty world. The Entity meta is registered first so it
// always has the lowest index and entity stores sort first within segments.
func NewWorld() *World {
	w := &World{
		identifier:     identify(),
		version:        1,
		typeToMeta:     make(map[reflect.Type]uint32),
		metaNames:      FactoryNewCache[*Meta](maxComponentTypes),
		segmentsByMask: make(map[mask.Mask]uint32),
		resources:      make(map[reflect.Type]*Store),
		entities:       newEntities(32),
	}
	MetaOf[Entity](w)
	return w
}

// maxComponentTypes bounds registered metas to the width of the archetype
// bitmask.
const maxComponentTypes = 256

// Identifier returns the world's process-unique identifier.
func (w *World) Identifier() uint64 {
	return w.identifier
}

// Version returns the structural version counter.
func (w *World) Version() uint64 {
	return w.version
}

// Entities returns the world's entity table.
func (w *World) Entities() *Entities {
	return w.entities
}

// Segments returns the world's segment list in creation order.
func (w *World) Segments() []*Segment {
	return w.segments
}

// SegmentAt returns the segment at the given index.
func (w *World) SegmentAt(index uint32) (*Segment, error) {
	if int(index) >= len(w.segments) {
		return nil, SegmentIndexOutOfRangeError{Index: int(index), Segment: index}
	}
	return w.segments[index], nil
}

// Metas returns the registered metas in index order.
func (w *World) Metas() []*Meta {
	return w.metas
}

// MetaAt returns the meta at the given registry index.
func (w *World) MetaAt(index uint32) *Meta {
	return w.metas[index]
}

// MetaByName looks a meta up by its display name.
func (w *World) MetaByName(name string) (*Meta, bool) {
	i, ok := w.metaNames.GetIndex(name)
	if !ok {
		return nil, false
	}
	return *w.metaNames.GetItem(i), true
}

// EntityMeta returns the meta of the Entity handle type itself.
func (w *World) EntityMeta() *Meta {
	return w.metas[0]
}

// MetaOf returns the meta registered for T, registering it and bumping the
// world's version on first reference. Registration is monotonic: an index,
// once assigned, never changes or is reused.
func MetaOf[T any](w *World, opts ...MetaOption) *Meta {
	var zero T
	typ := reflect.TypeOf(&zero).Elem()
	if index, ok := w.typeToMeta[typ]; ok {
		return w.metas[index]
	}
	if len(w.metas) >= maxComponentTypes {
		panic(bark.AddTrace(fmt.Errorf("cannot register %s: %d component types exceeded", typ, maxComponentTypes)))
	}
	meta := newMetaFor[T](uint32(len(w.metas)), opts...)
	w.metas = append(w.metas, meta)
	w.typeToMeta[typ] = meta.index
	if _, err := w.metaNames.Register(meta.name, meta); err != nil {
		panic(bark.AddTrace(err))
	}
	w.version++
	return meta
}

// GetMeta returns the meta for T if it was already registered.
func GetMeta[T any](w *World) (*Meta, error) {
	var zero T
	typ := reflect.TypeOf(&zero).Elem()
	index, ok := w.typeToMeta[typ]
	if !ok {
		return nil, MissingMetaError{Name: shortTypeName(typ)}
	}
	return w.metas[index], nil
}

// GetOrAddSegment returns the segment whose component-type set is exactly
// the given metas, creating it and bumping the world's version when the
// archetype is new. The Entity meta is implied and ignored if passed.
func (w *World) GetOrAddSegment(metas ...*Meta) *Segment {
	key := w.maskFor(metas)
	if index, ok := w.segmentsByMask[key]; ok {
		return w.segments[index]
	}

	// Walk the registry in order so stores are laid out consistently across
	// segments with overlapping type sets.
	var ordered []*Meta
	for _, meta := range w.metas[1:] {
		var probe mask.Mask
		probe.Mark(meta.index)
		if key.ContainsAll(probe) {
			ordered = append(ordered, meta)
		}
	}
	segment := newSegment(uint32(len(w.segments)), key, w.EntityMeta(), ordered)
	w.segments = append(w.segments, segment)
	w.segmentsByMask[key] = segment.index
	w.version++
	return segment
}

// GetSegment returns the segment for the exact component-type set, if it
// exists.
func (w *World) GetSegment(metas ...*Meta) (*Segment, bool) {
	index, ok := w.segmentsByMask[w.maskFor(metas)]
	if !ok {
		return nil, false
	}
	return w.segments[index], true
}

func (w *World) maskFor(metas []*Meta) mask.Mask {
	var key mask.Mask
	for _, meta := range metas {
		if meta.index == 0 {
			continue // the entity store is implied, never part of the key
		}
		key.Mark(meta.index)
	}
	return key
}

// ResourceOf returns the capacity-one store backing the resource T,
// initializing it with init on first reference. A nil init falls back to the
// zero value.
func ResourceOf[T any](w *World, init func(*World) (T, error)) (*Store, error) {
	meta := MetaOf[T](w)
	if store, ok := w.resources[meta.typ]; ok {
		return store, nil
	}
	var value T
	if init != nil {
		var err error
		if value, err = init(w); err != nil {
			return nil, err
		}
	}
	store := newStore(meta, 1)
	StoreSet(store, 0, value)
	w.resources[meta.typ] = store
	return store, nil
}

// GetResource returns the store backing T if the resource was initialized.
func GetResource[T any](w *World) (*Store, error) {
	var zero T
	typ := reflect.TypeOf(&zero).Elem()
	store, ok := w.resources[typ]
	if !ok {
		return nil, MissingResourceError{Name: shortTypeName(typ)}
	}
	return store, nil
}

// modify bumps the structural version. Used by operations that change what
// schedules may observe without adding a meta or segment.
func (w *World) modify() {
	w.version++
}
