package forge

import "reflect"

// addTemplate attaches one component value to the current entity.
type addTemplate[C any] struct {
	value C
}

// Add returns a template that sets one component on the entity being
// created. Statically sized.
func Add[C any](value C) Template {
	return addTemplate[C]{value: value}
}

func (t addTemplate[C]) Declare(ctx *DeclareContext) any {
	meta := MetaOf[C](ctx.World())
	ctx.Component(meta)
	return meta
}

func (t addTemplate[C]) Initialize(declared any, ctx *InitializeContext) (TemplateState, error) {
	store, err := ctx.Segment().StoreFor(declared.(*Meta))
	if err != nil {
		return nil, err
	}
	return &addState[C]{store: store}, nil
}

type addState[C any] struct {
	store *Store
}

func (s *addState[C]) StaticCount(ctx *CountContext) (bool, error) {
	return true, nil
}

func (s *addState[C]) DynamicCount(template Template, ctx *CountContext) error {
	return nil
}

func (s *addState[C]) Apply(template Template, ctx *ApplyContext) error {
	add, ok := template.(addTemplate[C])
	if !ok {
		return WrongTemplateError{Expected: s.store.meta.name, Actual: templateName(template)}
	}
	StoreSet(s.store, ctx.StoreRow(), add.value)
	return nil
}

// listTemplate composes templates that all apply to the same entity.
type listTemplate struct {
	items []Template
}

// List composes templates over one entity: every Add lands on it, every
// Spawn creates one of its children. Instances passed to a batch must keep
// the prototype's length and item types.
func List(items ...Template) Template {
	return listTemplate{items: items}
}

func (t listTemplate) Declare(ctx *DeclareContext) any {
	declared := make([]any, len(t.items))
	for i, item := range t.items {
		declared[i] = item.Declare(ctx)
	}
	return declared
}

func (t listTemplate) Initialize(declared any, ctx *InitializeContext) (TemplateState, error) {
	inputs := declared.([]any)
	states := make([]TemplateState, len(t.items))
	for i, item := range t.items {
		state, err := item.Initialize(inputs[i], ctx)
		if err != nil {
			return nil, err
		}
		states[i] = state
	}
	return &listState{states: states}, nil
}

type listState struct {
	states []TemplateState
}

func (s *listState) StaticCount(ctx *CountContext) (bool, error) {
	for _, state := range s.states {
		static, err := state.StaticCount(ctx)
		if err != nil || !static {
			return false, err
		}
	}
	return true, nil
}

func (s *listState) items(template Template) ([]Template, error) {
	list, ok := template.(listTemplate)
	if !ok || len(list.items) != len(s.states) {
		return nil, WrongTemplateError{Expected: "list", Actual: templateName(template)}
	}
	return list.items, nil
}

func (s *listState) DynamicCount(template Template, ctx *CountContext) error {
	items, err := s.items(template)
	if err != nil {
		return err
	}
	for i, state := range s.states {
		if err := state.DynamicCount(items[i], ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *listState) Apply(template Template, ctx *ApplyContext) error {
	items, err := s.items(template)
	if err != nil {
		return err
	}
	for i, state := range s.states {
		if err := state.Apply(items[i], ctx); err != nil {
			return err
		}
	}
	return nil
}

// spawnTemplate creates a child entity described by its inner template.
type spawnTemplate struct {
	child Template
}

// Spawn returns a template that creates a child entity of the current one,
// carrying whatever the inner template describes.
func Spawn(child Template) Template {
	return spawnTemplate{child: child}
}

type spawnDeclared struct {
	index    int
	declared any
}

func (t spawnTemplate) Declare(ctx *DeclareContext) any {
	return ctx.Child(func(index int, ctx *DeclareContext) any {
		return spawnDeclared{index: index, declared: t.child.Declare(ctx)}
	})
}

func (t spawnTemplate) Initialize(declared any, ctx *InitializeContext) (TemplateState, error) {
	d := declared.(spawnDeclared)
	return ctx.Child(d.index, func(slot int, ctx *InitializeContext) (TemplateState, error) {
		state, err := t.child.Initialize(d.declared, ctx)
		if err != nil {
			return nil, err
		}
		return &spawnState{slot: slot, child: state}, nil
	})
}

type spawnState struct {
	slot  int
	child TemplateState
}

func (s *spawnState) StaticCount(ctx *CountContext) (bool, error) {
	static := false
	err := ctx.Child(s.slot, func(ctx *CountContext) error {
		inner, err := s.child.StaticCount(ctx)
		static = inner
		return err
	})
	return static, err
}

func (s *spawnState) DynamicCount(template Template, ctx *CountContext) error {
	spawn, ok := template.(spawnTemplate)
	if !ok {
		return WrongTemplateError{Expected: "spawn", Actual: templateName(template)}
	}
	return ctx.Child(s.slot, func(ctx *CountContext) error {
		return s.child.DynamicCount(spawn.child, ctx)
	})
}

func (s *spawnState) Apply(template Template, ctx *ApplyContext) error {
	spawn, ok := template.(spawnTemplate)
	if !ok {
		return WrongTemplateError{Expected: "spawn", Actual: templateName(template)}
	}
	return ctx.Child(func(ctx *ApplyContext) error {
		return s.child.Apply(spawn.child, ctx)
	})
}

// emptyTemplate creates the entity with no components at all.
type emptyTemplate struct{}

// Empty returns the template of an entity with no components.
func Empty() Template {
	return emptyTemplate{}
}

func (emptyTemplate) Declare(ctx *DeclareContext) any {
	return nil
}

func (emptyTemplate) Initialize(declared any, ctx *InitializeContext) (TemplateState, error) {
	return emptyState{}, nil
}

type emptyState struct{}

func (emptyState) StaticCount(ctx *CountContext) (bool, error) {
	return true, nil
}

func (emptyState) DynamicCount(template Template, ctx *CountContext) error {
	return nil
}

func (emptyState) Apply(template Template, ctx *ApplyContext) error {
	return nil
}

// withTemplate computes its inner template from the family being created.
type withTemplate struct {
	prototype Template
	with      func(Family) Template
}

// With returns a template whose values are computed from the family at
// apply time; the closure can read the just-reserved entity handles, for
// example to store a parent reference in a component. The prototype fixes
// the shape; the closure's result must match it. Only statically sized
// prototypes are supported.
func With(prototype Template, with func(Family) Template) Template {
	return withTemplate{prototype: prototype, with: with}
}

func (t withTemplate) Declare(ctx *DeclareContext) any {
	return t.prototype.Declare(ctx)
}

func (t withTemplate) Initialize(declared any, ctx *InitializeContext) (TemplateState, error) {
	state, err := t.prototype.Initialize(declared, ctx)
	if err != nil {
		return nil, err
	}
	return &withState{child: state, prototype: t.prototype}, nil
}

type withState struct {
	child     TemplateState
	prototype Template
}

func (s *withState) StaticCount(ctx *CountContext) (bool, error) {
	static, err := s.child.StaticCount(ctx)
	if err != nil {
		return false, err
	}
	if !static {
		return false, StaticCountMustBeTrueError{}
	}
	return true, nil
}

func (s *withState) DynamicCount(template Template, ctx *CountContext) error {
	// The closure cannot run before entities exist, so the prototype's
	// static shape stands in for the instance.
	return s.child.DynamicCount(s.prototype, ctx)
}

func (s *withState) Apply(template Template, ctx *ApplyContext) error {
	with, ok := template.(withTemplate)
	if !ok {
		return WrongTemplateError{Expected: "with", Actual: templateName(template)}
	}
	return s.child.Apply(with.with(ctx.Family()), ctx)
}

// manyTemplate spawns a variable number of sibling children sharing one
// shape.
type manyTemplate struct {
	prototype Template
	items     []Template
}

// Many returns a dynamically sized template that spawns one child entity per
// item. Every item must share the prototype's shape.
func Many(prototype Template, items ...Template) Template {
	return manyTemplate{prototype: prototype, items: items}
}

func (t manyTemplate) Declare(ctx *DeclareContext) any {
	return spawnTemplate{child: t.prototype}.Declare(ctx)
}

func (t manyTemplate) Initialize(declared any, ctx *InitializeContext) (TemplateState, error) {
	state, err := spawnTemplate{child: t.prototype}.Initialize(declared, ctx)
	if err != nil {
		return nil, err
	}
	return &manyState{child: state.(*spawnState)}, nil
}

type manyState struct {
	child *spawnState
}

func (s *manyState) StaticCount(ctx *CountContext) (bool, error) {
	return false, nil
}

func (s *manyState) DynamicCount(template Template, ctx *CountContext) error {
	many, ok := template.(manyTemplate)
	if !ok {
		return WrongTemplateError{Expected: "many", Actual: templateName(template)}
	}
	for _, item := range many.items {
		if err := s.child.DynamicCount(spawnTemplate{child: item}, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *manyState) Apply(template Template, ctx *ApplyContext) error {
	many, ok := template.(manyTemplate)
	if !ok {
		return WrongTemplateError{Expected: "many", Actual: templateName(template)}
	}
	for _, item := range many.items {
		if err := s.child.Apply(spawnTemplate{child: item}, ctx); err != nil {
			return err
		}
	}
	return nil
}

func templateName(template Template) string {
	return shortTypeName(reflect.TypeOf(template))
}
