package binding

import (
	"sync"
	"time"

	"quizee-service/internal/domain"
)

// OptionList keeps one Field per answer option, matched by option id so that
// edits to one option never disturb the bindings of the others.
type OptionList struct {
	write        func(id, value string) error
	validatorFor func(index int) (*Validator, error)
	debounce     time.Duration

	mu     sync.Mutex
	order  []string
	fields map[string]*Field[string]
}

// NewOptionList builds an empty list. write receives one option's id and
// new value. validatorFor builds the validator for the option at a given
// index; it stays tied to that index, so after options are removed or
// reordered it reports on whichever option now sits there.
func NewOptionList(write func(id, value string) error, validatorFor func(index int) (*Validator, error), debounce time.Duration) *OptionList {
	return &OptionList{
		write:        write,
		validatorFor: validatorFor,
		debounce:     debounce,
		fields:       make(map[string]*Field[string]),
	}
}

// Reconcile aligns the bindings with options: surviving ids keep their field
// (overwritten only when the value differs and no edit is pending), vanished
// ids are torn down and new ids get a fresh field.
func (l *OptionList) Reconcile(options []domain.AnswerOption) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{}, len(options))
	order := make([]string, 0, len(options))
	for i, opt := range options {
		seen[opt.ID] = struct{}{}
		order = append(order, opt.ID)
		if field, ok := l.fields[opt.ID]; ok {
			field.Reset(opt.Value)
			continue
		}
		var v *Validator
		if l.validatorFor != nil {
			var err error
			if v, err = l.validatorFor(i); err != nil {
				return err
			}
		}
		id := opt.ID
		l.fields[id] = NewField(opt.Value, func(v string) error { return l.write(id, v) }, FieldOptions[string]{
			Debounce:  l.debounce,
			Validator: v,
		})
	}
	for id, field := range l.fields {
		if _, ok := seen[id]; !ok {
			field.Close()
			delete(l.fields, id)
		}
	}
	l.order = order
	return nil
}

// Field returns the binding for an option id.
func (l *OptionList) Field(id string) (*Field[string], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.fields[id]
	return f, ok
}

// Options returns the options as currently held by the bindings.
func (l *OptionList) Options() []domain.AnswerOption {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AnswerOption, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, domain.AnswerOption{ID: id, Value: l.fields[id].Value()})
	}
	return out
}

func (l *OptionList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Flush forces every pending option write.
func (l *OptionList) Flush() error {
	l.mu.Lock()
	fields := make([]*Field[string], 0, len(l.fields))
	for _, f := range l.fields {
		fields = append(fields, f)
	}
	l.mu.Unlock()
	for _, f := range fields {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (l *OptionList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, f := range l.fields {
		f.Close()
		delete(l.fields, id)
	}
	l.order = nil
}
