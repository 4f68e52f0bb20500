package binding

import (
	"fmt"
	"sync"
	"time"

	"quizee-service/internal/domain"
	"quizee-service/internal/editor"
	"quizee-service/internal/stream"
)

// Form owns the field bindings of one editor session. Fields are created on
// first use and follow the store from then on.
type Form struct {
	store    *editor.Store
	debounce time.Duration

	mu        sync.Mutex
	caption   *Field[string]
	stops     []func()
	questions map[int]*questionFields
}

type questionFields struct {
	caption *Field[string]
	options *OptionList
	stops   []func()
}

func NewForm(store *editor.Store, debounce time.Duration) *Form {
	return &Form{
		store:     store,
		debounce:  debounce,
		questions: make(map[int]*questionFields),
	}
}

// Caption binds info.caption.
func (f *Form) Caption() (*Field[string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.caption != nil {
		return f.caption, nil
	}
	quiz, ok := f.store.Snapshot()
	if !ok {
		return nil, domain.ErrNotLoaded
	}
	errs := f.store.QuizErrors("info.caption")
	field := NewField(quiz.Info.Caption, func(v string) error {
		return f.store.UpdateInfo(func(info *domain.QuizInfo) { info.Caption = v })
	}, FieldOptions[string]{Debounce: f.debounce, Validator: NewValidator(errs, errs.Close)})

	f.stops = append(f.stops, f.store.Get().Subscribe(func(q domain.Quiz) {
		field.Reset(q.Info.Caption)
	}))
	f.caption = field
	return field, nil
}

// QuestionCaption binds questions[index].caption.
func (f *Form) QuestionCaption(index int) (*Field[string], error) {
	qf, err := f.question(index)
	if err != nil {
		return nil, err
	}
	return qf.caption, nil
}

// Options binds the answer options of questions[index].
func (f *Form) Options(index int) (*OptionList, error) {
	qf, err := f.question(index)
	if err != nil {
		return nil, err
	}
	return qf.options, nil
}

// Validator builds a one-off validator for a per-question path, or for a
// document path when index is negative.
func (f *Form) Validator(index int, path string) (*Validator, error) {
	if index < 0 {
		errs := f.store.QuizErrors(path)
		return NewValidator(errs, errs.Close), nil
	}
	errs, err := f.store.QuestionErrors(index, path)
	if err != nil {
		return nil, err
	}
	return NewValidator(errs, errs.Close), nil
}

// Flush writes every pending change.
func (f *Form) Flush() error {
	f.mu.Lock()
	caption := f.caption
	questions := make([]*questionFields, 0, len(f.questions))
	for _, qf := range f.questions {
		questions = append(questions, qf)
	}
	f.mu.Unlock()

	if caption != nil {
		if err := caption.Flush(); err != nil {
			return err
		}
	}
	for _, qf := range questions {
		if err := qf.caption.Flush(); err != nil {
			return err
		}
		if err := qf.options.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close tears every binding down.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stop := range f.stops {
		stop()
	}
	f.stops = nil
	if f.caption != nil {
		f.caption.Close()
		f.caption = nil
	}
	for index, qf := range f.questions {
		qf.close()
		delete(f.questions, index)
	}
}

func (qf *questionFields) close() {
	for _, stop := range qf.stops {
		stop()
	}
	qf.caption.Close()
	qf.options.Close()
}

func (f *Form) question(index int) (*questionFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := f.store.Question(index)
	pair, ok := view.Value()
	if !ok {
		if qf, cached := f.questions[index]; cached {
			qf.close()
			delete(f.questions, index)
		}
		return nil, fmt.Errorf("bind question %d: %w", index, domain.ErrIndexOutOfRange)
	}
	if qf, ok := f.questions[index]; ok {
		return qf, nil
	}

	captionErrs, err := f.store.QuestionErrors(index, "question.caption")
	if err != nil {
		return nil, err
	}
	qf := &questionFields{}
	qf.caption = NewField(pair.Question.Caption, func(v string) error {
		return f.store.ModifyQuestion(index, editor.QuestionPatch{Caption: &v})
	}, FieldOptions[string]{Debounce: f.debounce, Validator: NewValidator(captionErrs, captionErrs.Close)})

	qf.options = NewOptionList(
		func(id, value string) error {
			return f.store.SetOptionValue(index, id, value)
		},
		func(i int) (*Validator, error) {
			errs, err := f.store.QuestionErrors(index, fmt.Sprintf("question.answerOptions[%d]", i))
			if err != nil {
				return nil, err
			}
			return NewValidator(errs, errs.Close), nil
		},
		f.debounce,
	)
	if err := qf.options.Reconcile(pair.Question.AnswerOptions); err != nil {
		qf.caption.Close()
		return nil, err
	}

	qf.stops = append(qf.stops, subscribePairs(view, func(p domain.QuestionPair) {
		qf.caption.Reset(p.Question.Caption)
		_ = qf.options.Reconcile(p.Question.AnswerOptions)
	}))
	f.questions[index] = qf
	return qf, nil
}

// subscribePairs skips the replayed value; the caller has already seeded its
// fields from it.
func subscribePairs(src stream.Source[domain.QuestionPair], fn func(domain.QuestionPair)) func() {
	replayed := false
	return src.Subscribe(func(p domain.QuestionPair) {
		if !replayed {
			replayed = true
			return
		}
		fn(p)
	})
}
