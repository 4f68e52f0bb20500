package binding

import (
	"context"
	"reflect"
	"sync"
	"time"

	"quizee-service/internal/stream"
	"quizee-service/internal/validation"
)

// FieldOptions configures a Field.
type FieldOptions[T any] struct {
	// Debounce delays writes until the value has been stable for this long.
	// Zero writes synchronously.
	Debounce time.Duration
	// Equal decides whether a value differs from the last written one.
	// Defaults to reflect.DeepEqual.
	Equal func(a, b T) bool
	// Validator reports the field's validity. Optional.
	Validator *Validator
}

// Field binds one editable value to the store: it starts from an initial
// value, pushes later changes back through write (debounced and deduplicated)
// and exposes a validator scoped to its own path.
type Field[T any] struct {
	write     func(T) error
	debounce  time.Duration
	equal     func(a, b T) bool
	validator *Validator

	mu      sync.Mutex
	value   T
	written T
	timer   *time.Timer
	closed  bool
	lastErr error
}

func NewField[T any](initial T, write func(T) error, opts FieldOptions[T]) *Field[T] {
	equal := opts.Equal
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	return &Field[T]{
		write:     write,
		debounce:  opts.Debounce,
		equal:     equal,
		validator: opts.Validator,
		value:     initial,
		written:   initial,
	}
}

func (f *Field[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set records a user-driven change and schedules the write.
func (f *Field[T]) Set(v T) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.value = v
	if f.debounce <= 0 {
		f.mu.Unlock()
		return f.Flush()
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.debounce, func() { _ = f.Flush() })
	f.mu.Unlock()
	return nil
}

// Reset overwrites the value from the store side without writing it back.
// A value the user changed but that has not been written yet is kept, and
// still gets written. It reports whether the value changed.
func (f *Field[T]) Reset(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := !f.equal(f.value, f.written)
	f.written = v
	if pending || f.equal(f.value, v) {
		return false
	}
	f.value = v
	return true
}

// Pending reports whether a user change is waiting to be written.
func (f *Field[T]) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed && !f.equal(f.value, f.written)
}

// Flush writes a pending value now. Unchanged values are not written.
func (f *Field[T]) Flush() error {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.closed || f.equal(f.value, f.written) {
		f.mu.Unlock()
		return nil
	}
	v := f.value
	f.written = v
	f.mu.Unlock()

	err := f.write(v)
	f.mu.Lock()
	f.lastErr = err
	f.mu.Unlock()
	return err
}

// Err returns the error of the most recent write.
func (f *Field[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Field[T]) Validator() *Validator {
	return f.validator
}

// Close drops any pending write and detaches the validator.
func (f *Field[T]) Close() {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.closed = true
	f.mu.Unlock()
	if f.validator != nil {
		f.validator.Close()
	}
}

// Validator resolves a field's validity from an error stream that is already
// filtered to the field's path.
type Validator struct {
	src   stream.Source[validation.Result]
	close func()
}

// NewValidator wraps src. closeFn, when set, releases src on Close.
func NewValidator(src stream.Source[validation.Result], closeFn func()) *Validator {
	return &Validator{src: src, close: closeFn}
}

// Once resolves on the first emission.
func (v *Validator) Once(ctx context.Context) (validation.Result, error) {
	ch := make(chan validation.Result, 1)
	var once sync.Once
	cancel := v.src.Subscribe(func(r validation.Result) {
		once.Do(func() { ch <- r })
	})
	defer cancel()

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Watch re-resolves on every emission until ctx is done, then closes the
// channel.
func (v *Validator) Watch(ctx context.Context) <-chan validation.Result {
	ch, cancel := stream.Chan(v.src, 1)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch
}

func (v *Validator) Close() {
	if v.close != nil {
		v.close()
	}
}
