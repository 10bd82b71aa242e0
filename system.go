package forge

// System is the scheduler's unit of work. Update refreshes the system's
// state against the world and may register metas or segments; Depend reports
// the accesses the last Update settled on; Run executes the parallel phase
// and must leave the world's structure untouched; Resolve applies the
// system's deferred work at the following synchronization point.
type System interface {
	Update(w *World) error
	Depend() []Dependency
	Run(w *World) error
	Resolve(w *World) error
}

// SystemFuncs adapts plain functions into a System. Nil fields are no-ops.
type SystemFuncs struct {
	UpdateFunc  func(w *World) error
	DependFunc  func() []Dependency
	RunFunc     func(w *World) error
	ResolveFunc func(w *World) error
}

var _ System = SystemFuncs{}

func (s SystemFuncs) Update(w *World) error {
	if s.UpdateFunc == nil {
		return nil
	}
	return s.UpdateFunc(w)
}

func (s SystemFuncs) Depend() []Dependency {
	if s.DependFunc == nil {
		return nil
	}
	return s.DependFunc()
}

func (s SystemFuncs) Run(w *World) error {
	if s.RunFunc == nil {
		return nil
	}
	return s.RunFunc(w)
}

func (s SystemFuncs) Resolve(w *World) error {
	if s.ResolveFunc == nil {
		return nil
	}
	return s.ResolveFunc(w)
}

// Inject is a composable piece of system state: it refreshes itself when the
// world changes, declares the dependencies its access implies, and applies
// any deferred work it queued.
type Inject interface {
	Update(w *World) error
	Depend() []Dependency
	Resolve(w *World) error
}

// injectSystem is a System assembled from injected state and a run function.
type injectSystem struct {
	injects []Inject
	run     func(w *World) error
}

// NewSystem builds a system from a run function and the injected state it
// closes over. The injects' dependencies drive scheduling, and their
// deferred work resolves after each block the system ran in.
func NewSystem(run func(w *World) error, injects ...Inject) System {
	return &injectSystem{injects: injects, run: run}
}

func (s *injectSystem) Update(w *World) error {
	for _, inject := range s.injects {
		if err := inject.Update(w); err != nil {
			return err
		}
	}
	return nil
}

func (s *injectSystem) Depend() []Dependency {
	var dependencies []Dependency
	for _, inject := range s.injects {
		dependencies = append(dependencies, inject.Depend()...)
	}
	return dependencies
}

func (s *injectSystem) Run(w *World) error {
	if s.run == nil {
		return nil
	}
	return s.run(w)
}

func (s *injectSystem) Resolve(w *World) error {
	var err error
	for _, inject := range s.injects {
		err = mergeErrors(err, inject.Resolve(w))
	}
	return flattenError(err)
}
