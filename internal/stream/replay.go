package stream

import "sync"

// Source is the read side of a replaying stream.
type Source[T any] interface {
	// Subscribe registers fn and immediately replays the latest value, if any.
	// The returned func unsubscribes; it is safe to call more than once.
	Subscribe(fn func(T)) func()
	// Value returns the latest published value.
	Value() (T, bool)
}

// Replay caches the latest value and fans every new value out to all current
// subscribers. Publish delivers synchronously, in subscription order, before
// it returns.
type Replay[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	nextID int
	subs   []subscriber[T]
	copyFn func(T) T
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

func NewReplay[T any]() *Replay[T] {
	return &Replay[T]{}
}

// NewReplayWithCopy hands every subscriber (and every Value call) its own copy
// of the published value.
func NewReplayWithCopy[T any](copyFn func(T) T) *Replay[T] {
	return &Replay[T]{copyFn: copyFn}
}

func (r *Replay[T]) Publish(v T) {
	r.Stage(v)
	r.Flush()
}

// Stage replaces the cached value without notifying anyone. Paired with Flush
// it lets several streams be updated before any of them is observed.
func (r *Replay[T]) Stage(v T) {
	r.mu.Lock()
	r.value = v
	r.has = true
	r.mu.Unlock()
}

// Clear drops the cached value. Subscribers are not notified; late ones get
// no replay until the next Publish.
func (r *Replay[T]) Clear() {
	r.mu.Lock()
	var zero T
	r.value = zero
	r.has = false
	r.mu.Unlock()
}

// Flush delivers the cached value to every current subscriber.
func (r *Replay[T]) Flush() {
	r.mu.Lock()
	if !r.has {
		r.mu.Unlock()
		return
	}
	v := r.value
	subs := append([]subscriber[T](nil), r.subs...)
	r.mu.Unlock()

	for _, s := range subs {
		s.fn(r.copyOf(v))
	}
}

func (r *Replay[T]) Subscribe(fn func(T)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriber[T]{id: id, fn: fn})
	value, has := r.value, r.has
	r.mu.Unlock()

	if has {
		fn(r.copyOf(value))
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Replay[T]) Value() (T, bool) {
	r.mu.Lock()
	value, has := r.value, r.has
	r.mu.Unlock()
	if !has {
		return value, false
	}
	return r.copyOf(value), true
}

// Subscribers reports how many subscriptions are live.
func (r *Replay[T]) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Replay[T]) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

func (r *Replay[T]) copyOf(v T) T {
	if r.copyFn == nil {
		return v
	}
	return r.copyFn(v)
}

// Derived is a replaying stream computed from another one.
type Derived[T any] struct {
	*Replay[T]
	stop func()
}

// Map republishes fn(v) for every value of src until Close is called.
func Map[A, B any](src Source[A], fn func(A) B) *Derived[B] {
	d := &Derived[B]{Replay: NewReplay[B]()}
	d.stop = src.Subscribe(func(v A) {
		d.Publish(fn(v))
	})
	return d
}

// Close detaches the derived stream from its source.
func (d *Derived[T]) Close() {
	d.stop()
}

// Chan adapts a subscription to a channel. When the consumer falls behind the
// oldest buffered value is dropped so the publisher never blocks. The cancel
// func unsubscribes and closes the channel.
func Chan[T any](src Source[T], buffer int) (<-chan T, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan T, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	unsubscribe := src.Subscribe(func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	})
	cancel := func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
	return ch, cancel
}
