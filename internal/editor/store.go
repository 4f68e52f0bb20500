package editor

import (
	"sync"

	"quizee-service/internal/domain"
	"quizee-service/internal/logger"
	"quizee-service/internal/stream"
	"quizee-service/internal/validation"
)

// QuizPatch is a shallow, field-level override of a quizee. Nil fields keep
// the held value; non-nil fields replace it wholesale.
type QuizPatch struct {
	Info      *domain.QuizInfo
	Questions []domain.Question
	Answers   []domain.Answer
}

// Options configures a Store.
type Options struct {
	Validator *validation.Validator
	Matcher   validation.Matcher
	Logger    *logger.Logger
	Dispatch  stream.DispatchConfig
}

// Store holds the quizee currently being authored. Every mutation funnels
// into Load, which recomputes validation and every scoped view before any
// subscriber hears about the new document.
//
// Mutations from several goroutines are serialized: each one holds the store
// from its first read until its subscribers have been notified. Subscribers
// must not mutate the store from inside a callback.
type Store struct {
	validator *validation.Validator
	matcher   validation.Matcher
	log       *logger.Logger
	dispatch  *stream.Dispatcher

	// write is held by the outermost mutation, mu only around field access.
	write   sync.Mutex
	mu      sync.Mutex
	quiz    domain.Quiz
	loaded  bool
	errs    []domain.ValidationError
	preview int

	doc     *stream.Replay[domain.Quiz]
	errors  *stream.Replay[[]domain.ValidationError]
	current *stream.Replay[domain.QuestionPair]
	byIndex map[int]*stream.Replay[domain.QuestionPair]
}

func New(opts Options) *Store {
	v := opts.Validator
	if v == nil {
		v = validation.New()
	}
	return &Store{
		validator: v,
		matcher:   opts.Matcher,
		log:       logger.OrNop(opts.Logger),
		dispatch:  stream.NewDispatcher(opts.Dispatch),
		preview:   -1,
		doc:       stream.NewReplayWithCopy(domain.Quiz.Clone),
		errors:    stream.NewReplayWithCopy(domain.CloneErrors),
		current:   stream.NewReplayWithCopy(domain.QuestionPair.Clone),
		byIndex:   make(map[int]*stream.Replay[domain.QuestionPair]),
	}
}

// Load replaces the held document and republishes it.
func (s *Store) Load(quiz domain.Quiz) {
	_ = s.mutate(func() error {
		s.load(quiz)
		return nil
	})
}

// Create loads the default document: one empty ONE_TRUE question.
func (s *Store) Create() {
	s.Load(domain.NewQuiz())
}

// Modify shallow-merges patch onto the held document.
func (s *Store) Modify(patch QuizPatch) error {
	return s.mutate(func() error { return s.modify(patch) })
}

// UpdateInfo edits the document info in place, e.g. to rename the quizee or
// record the id assigned on publish.
func (s *Store) UpdateInfo(fn func(info *domain.QuizInfo)) error {
	return s.mutate(func() error {
		quiz, err := s.snapshot()
		if err != nil {
			return err
		}
		info := quiz.Info
		fn(&info)
		return s.modify(QuizPatch{Info: &info})
	})
}

// mutate runs fn as the outermost mutation. Nested steps call the unexported
// helpers directly.
func (s *Store) mutate(fn func() error) error {
	s.write.Lock()
	defer s.write.Unlock()
	return s.dispatch.Run(fn)
}

func (s *Store) load(quiz domain.Quiz) {
	_ = s.dispatch.Run(func() error {
		quiz = quiz.Clone()
		errs := s.validator.Validate(quiz)

		s.mu.Lock()
		s.quiz = quiz
		s.loaded = true
		s.errs = errs
		s.mu.Unlock()

		s.log.Debug("quizee loaded", "quizId", quiz.Info.ID, "questions", len(quiz.Questions), "errors", len(errs))
		s.dispatch.Defer("publish", s.publish)
		return nil
	})
}

func (s *Store) modify(patch QuizPatch) error {
	return s.dispatch.Run(func() error {
		quiz, err := s.snapshot()
		if err != nil {
			return err
		}
		if patch.Info != nil {
			quiz.Info = *patch.Info
		}
		if patch.Questions != nil {
			quiz.Questions = patch.Questions
		}
		if patch.Answers != nil {
			quiz.Answers = patch.Answers
		}
		s.load(quiz)
		return nil
	})
}

// Get streams the full document; late subscribers get the latest one first.
func (s *Store) Get() stream.Source[domain.Quiz] {
	return s.doc
}

// Snapshot returns a copy of the held document.
func (s *Store) Snapshot() (domain.Quiz, bool) {
	quiz, err := s.snapshot()
	return quiz, err == nil
}

// Errors streams the validation errors of the held document.
func (s *Store) Errors() stream.Source[[]domain.ValidationError] {
	return s.errors
}

// Question streams the pair at index. Documents without that index are not
// emitted, and while the index is missing the view holds no value.
func (s *Store) Question(index int) stream.Source[domain.QuestionPair] {
	s.mu.Lock()
	r, cached := s.byIndex[index]
	if !cached {
		r = stream.NewReplayWithCopy(domain.QuestionPair.Clone)
		s.byIndex[index] = r
	}
	// Staged under mu so a concurrent publish cannot be overtaken by an older
	// pair. A fresh view has no subscribers to flush to yet.
	switch pair, has := s.pairLocked(index); {
	case !has:
		r.Clear()
	case !cached:
		r.Stage(pair)
	}
	s.mu.Unlock()
	return r
}

// CurrentQuestion streams the question being worked on: index 0 while
// editing, the first unanswered one while previewing.
func (s *Store) CurrentQuestion() stream.Source[domain.QuestionPair] {
	return s.current
}

// CurrentIndex reports the index CurrentQuestion is following.
func (s *Store) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndexLocked()
}

// SetPreviewProgress switches to preview with answered questions done. A
// negative value returns to plain editing.
func (s *Store) SetPreviewProgress(answered int) error {
	return s.mutate(func() error {
		quiz, err := s.snapshot()
		if err != nil {
			return err
		}
		s.mu.Lock()
		if answered < 0 {
			answered = -1
		}
		s.preview = answered
		s.mu.Unlock()
		s.load(quiz)
		return nil
	})
}

// QuizErrors resolves errors for a document-level path such as "info.caption".
func (s *Store) QuizErrors(path string) *stream.Derived[validation.Result] {
	return stream.Map[[]domain.ValidationError, validation.Result](s.errors, func(errs []domain.ValidationError) validation.Result {
		return s.matcher.Filter(errs, path)
	})
}

// QuestionErrors resolves errors for a per-question path ("question…" or
// "answer…") of the question at index.
func (s *Store) QuestionErrors(index int, path string) (*stream.Derived[validation.Result], error) {
	label, err := validation.ScopedLabel(index, path)
	if err != nil {
		return nil, err
	}
	return s.QuizErrors(label), nil
}

// CurrentQuestionErrors follows whichever question is current.
func (s *Store) CurrentQuestionErrors(path string) (*stream.Derived[validation.Result], error) {
	if _, _, err := validation.ScopeOf(path); err != nil {
		return nil, err
	}
	return stream.Map[[]domain.ValidationError, validation.Result](s.errors, func(errs []domain.ValidationError) validation.Result {
		label, _ := validation.ScopedLabel(s.CurrentIndex(), path)
		return s.matcher.Filter(errs, label)
	}), nil
}

func (s *Store) publish() {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return
	}
	quiz := s.quiz
	errs := s.errs
	current, hasCurrent := s.pairLocked(s.currentIndexLocked())
	type scoped struct {
		r    *stream.Replay[domain.QuestionPair]
		pair domain.QuestionPair
	}
	views := make([]scoped, 0, len(s.byIndex))
	var gone []*stream.Replay[domain.QuestionPair]
	for index, r := range s.byIndex {
		if pair, ok := s.pairLocked(index); ok {
			views = append(views, scoped{r: r, pair: pair})
		} else {
			gone = append(gone, r)
		}
	}
	s.mu.Unlock()

	for _, r := range gone {
		r.Clear()
	}
	s.doc.Stage(quiz)
	s.errors.Stage(errs)
	if hasCurrent {
		s.current.Stage(current)
	}
	for _, v := range views {
		v.r.Stage(v.pair)
	}

	s.errors.Flush()
	s.doc.Flush()
	if hasCurrent {
		s.current.Flush()
	}
	for _, v := range views {
		v.r.Flush()
	}
}

func (s *Store) snapshot() (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.Quiz{}, domain.ErrNotLoaded
	}
	return s.quiz.Clone(), nil
}

func (s *Store) currentIndexLocked() int {
	if s.preview < 0 {
		return 0
	}
	if n := len(s.quiz.Questions); s.preview >= n && n > 0 {
		return n - 1
	}
	return s.preview
}

func (s *Store) pairLocked(index int) (domain.QuestionPair, bool) {
	if !s.loaded || index < 0 || index >= len(s.quiz.Questions) {
		return domain.QuestionPair{}, false
	}
	question := s.quiz.Questions[index]
	return domain.QuestionPair{
		Question: question,
		Answer:   answerAt(s.quiz, index),
		Index:    index,
	}, true
}

// answerAt returns the answer aligned with questions[index], or an empty one
// when the document has not got that far yet.
func answerAt(quiz domain.Quiz, index int) domain.Answer {
	if index < len(quiz.Answers) {
		return quiz.Answers[index]
	}
	return domain.NewAnswer(quiz.Questions[index].ID)
}
