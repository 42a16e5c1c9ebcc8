package sequence

// Condition is the atomic predicate of an action. The acting entity's capture registry is the
// only state it may touch, and it must not keep the event or entry after returning.
// A returned error is treated as a fault of the owning sequence.
type Condition[T any] interface {
	Evaluate(ctx *Context, event T) (bool, error)
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc[T any] func(ctx *Context, event T) (bool, error)

func (f ConditionFunc[T]) Evaluate(ctx *Context, event T) (bool, error) {
	return f(ctx, event)
}

// Predicate adapts an infallible function to Condition.
type Predicate[T any] func(ctx *Context, event T) bool

func (f Predicate[T]) Evaluate(ctx *Context, event T) (bool, error) {
	return f(ctx, event), nil
}

// Not inverts c. Errors pass through unchanged.
func Not[T any](c Condition[T]) Condition[T] {
	return ConditionFunc[T](func(ctx *Context, event T) (bool, error) {
		ok, err := c.Evaluate(ctx, event)
		if err != nil {
			return false, err
		}
		return !ok, nil
	})
}
