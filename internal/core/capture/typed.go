package capture

// Get reads key as T. A payload of another type reads as absent.
func Get[T any](r *Registry, key Key[T]) (T, bool) {
	v, ok := r.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	return As[T](v)
}

// Lookup reads key as T, falling back to the key's default when absent or mistyped.
func Lookup[T any](r *Registry, key Key[T]) T {
	if v, ok := Get(r, key); ok {
		return v
	}
	return key.Zero()
}

// Set writes v and returns the previous payload, or the key's default.
func Set[T any](r *Registry, key Key[T], v T) T {
	prev, ok := As[T](r.Set(key, key.Of(v)))
	if !ok {
		return key.Zero()
	}
	return prev
}

// Update applies fn to the current payload (or default) and stores the result.
func Update[T any](r *Registry, key Key[T], fn func(T) T) T {
	next := fn(Lookup(r, key))
	Set(r, key, next)
	return next
}
