package capture

// KeyID is the comparable identity of a measurement kind.
type KeyID string

// Descriptor is the untyped view of a Key used by the Registry.
type Descriptor interface {
	ID() KeyID
	Default() Value
}

// Key names a measurement of type T together with the value it reads as before any write.
// Keys are immutable values; two keys with the same id address the same slot.
type Key[T any] struct {
	id  KeyID
	def T
}

var _ Descriptor = Key[int]{}

func NewKey[T any](id string, def T) Key[T] {
	return Key[T]{id: KeyID(id), def: def}
}

func (k Key[T]) ID() KeyID { return k.id }

func (k Key[T]) Default() Value { return Value{key: k.id, data: k.def} }

func (k Key[T]) Zero() T { return k.def }

// Of tags v with this key.
func (k Key[T]) Of(v T) Value { return Value{key: k.id, data: v} }

func (k Key[T]) String() string { return string(k.id) }

// Value is a tagged measurement. The dynamic type of Data is checked on typed reads.
type Value struct {
	key  KeyID
	data any
}

func (v Value) Key() KeyID { return v.key }

func (v Value) Data() any { return v.data }

// As asserts the payload to T.
func As[T any](v Value) (T, bool) {
	t, ok := v.data.(T)
	return t, ok
}
