package forge

import (
	"fmt"
	"strings"
)

// WrongWorldError reports a runner or injector used against a world other
// than the one it was built for.
type WrongWorldError struct {
	Expected, Actual uint64
}

func (e WrongWorldError) Error() string {
	return fmt.Sprintf("wrong world: built for %d, ran against %d", e.Expected, e.Actual)
}

// UnstableWorldVersionError reports that the world's version kept changing
// during schedule construction, which indicates an infinite declaration loop.
type UnstableWorldVersionError struct{}

func (e UnstableWorldVersionError) Error() string {
	return "world version did not stabilize during scheduling"
}

// MissingMetaError reports a type that was never registered with the world.
type MissingMetaError struct {
	Name string
}

func (e MissingMetaError) Error() string {
	return fmt.Sprintf("missing meta for type %s", e.Name)
}

// MissingResourceError reports a resource the world cannot provide.
type MissingResourceError struct {
	Name string
}

func (e MissingResourceError) Error() string {
	return fmt.Sprintf("missing resource %s", e.Name)
}

// MissingStoreError reports a component store absent from a segment.
type MissingStoreError struct {
	Name    string
	Segment uint32
}

func (e MissingStoreError) Error() string {
	return fmt.Sprintf("missing store for %s in segment %d", e.Name, e.Segment)
}

// MissingCloneError reports a duplication attempt on a type with no cloner.
type MissingCloneError struct {
	Name string
}

func (e MissingCloneError) Error() string {
	return fmt.Sprintf("missing clone for type %s", e.Name)
}

// StaticCountMustBeTrueError reports a template that requires static sizing
// but failed the static count check.
type StaticCountMustBeTrueError struct{}

func (e StaticCountMustBeTrueError) Error() string {
	return "template must have a static count"
}

// SegmentIndexOutOfRangeError reports a row access past a segment's count.
type SegmentIndexOutOfRangeError struct {
	Index   int
	Segment uint32
}

func (e SegmentIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range for segment %d", e.Index, e.Segment)
}

// SegmentMustBeClonableError reports a duplication attempt on a segment with
// at least one store that cannot clone.
type SegmentMustBeClonableError struct {
	Segment uint32
}

func (e SegmentMustBeClonableError) Error() string {
	return fmt.Sprintf("segment %d must be clonable", e.Segment)
}

// InvalidEntityError reports an operation against a dead or null entity.
type InvalidEntityError struct {
	Entity Entity
}

func (e InvalidEntityError) Error() string {
	return fmt.Sprintf("invalid entity %v", e.Entity)
}

// FailedToInitializeError reports an entity datum that could not be written.
type FailedToInitializeError struct {
	Entity  uint32
	Store   uint32
	Segment uint32
}

func (e FailedToInitializeError) Error() string {
	return fmt.Sprintf("failed to initialize entity %d at (segment %d, row %d)", e.Entity, e.Segment, e.Store)
}

// FailedToUpdateError reports an entity datum that could not be repointed
// after a row move.
type FailedToUpdateError struct {
	Entity  uint32
	Store   uint32
	Segment uint32
}

func (e FailedToUpdateError) Error() string {
	return fmt.Sprintf("failed to update entity %d at (segment %d, row %d)", e.Entity, e.Segment, e.Store)
}

// FailedToScheduleError reports that block construction could not complete.
type FailedToScheduleError struct{}

func (e FailedToScheduleError) Error() string {
	return "failed to schedule systems"
}

// FailedToRunError marks a tick in which a block's systems failed to run or
// resolve; the runner returns it aggregated with those failures.
type FailedToRunError struct{}

func (e FailedToRunError) Error() string {
	return "failed to run systems"
}

// WrongTemplateError reports a batch instance whose shape diverges from the
// prototype the creator was built with.
type WrongTemplateError struct {
	Expected, Actual string
}

func (e WrongTemplateError) Error() string {
	return fmt.Sprintf("wrong template: expected %s, got %s", e.Expected, e.Actual)
}

// AllError aggregates errors from parallel execution. It flattens nested
// aggregates so callers see a single level of failures.
type AllError struct {
	Errors []error
}

func (e AllError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return "multiple failures: [" + strings.Join(parts, "; ") + "]"
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e AllError) Unwrap() []error {
	return e.Errors
}

// mergeErrors combines two possibly-nil, possibly-aggregate errors into one.
func mergeErrors(left, right error) error {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	la, lok := left.(AllError)
	ra, rok := right.(AllError)
	switch {
	case lok && rok:
		return AllError{Errors: append(la.Errors, ra.Errors...)}
	case lok:
		return AllError{Errors: append(la.Errors, right)}
	case rok:
		return AllError{Errors: append([]error{left}, ra.Errors...)}
	default:
		return AllError{Errors: []error{left, right}}
	}
}

// flattenError collapses an aggregate down to nil (empty), the single inner
// error, or a one-level AllError.
func flattenError(err error) error {
	all, ok := err.(AllError)
	if !ok {
		return err
	}
	var errors []error
	var descend func(error)
	descend = func(err error) {
		if inner, ok := err.(AllError); ok {
			for _, err := range inner.Errors {
				descend(err)
			}
			return
		}
		if err != nil {
			errors = append(errors, err)
		}
	}
	descend(all)
	switch len(errors) {
	case 0:
		return nil
	case 1:
		return errors[0]
	default:
		return AllError{Errors: errors}
	}
}
