package editor

import (
	"fmt"

	"quizee-service/internal/domain"
)

// QuestionPatch overrides the given fields of one question.
type QuestionPatch struct {
	Caption       *string
	Type          *domain.QuestionType
	AnswerOptions []domain.AnswerOption
}

// SetAnswer replaces the correct answer of the question at index.
func (s *Store) SetAnswer(index int, answer []string) error {
	return s.mutate(func() error { return s.setAnswer(index, answer) })
}

// SetAnswerConfig replaces the answer settings of the question at index.
func (s *Store) SetAnswerConfig(index int, cfg domain.AnswerConfig) error {
	return s.mutate(func() error {
		return s.updateAnswer(index, func(a *domain.Answer, _ domain.Question) error {
			a.Config = cfg
			return nil
		})
	})
}

// SetAnswerOptions replaces the option list. For choice questions, answer
// entries that point at a removed option are dropped.
func (s *Store) SetAnswerOptions(index int, options []domain.AnswerOption) error {
	return s.mutate(func() error { return s.setAnswerOptions(index, options) })
}

// SetOptionValue changes the text of one option, leaving its siblings as the
// store holds them.
func (s *Store) SetOptionValue(index int, optionID, value string) error {
	return s.mutate(func() error {
		pair, err := s.pairAt(index)
		if err != nil {
			return err
		}
		for i, opt := range pair.Question.AnswerOptions {
			if opt.ID != optionID {
				continue
			}
			if opt.Value == value {
				return nil
			}
			pair.Question.AnswerOptions[i].Value = value
			return s.replaceQuestion(index, pair.Question)
		}
		return fmt.Errorf("option %q: %w", optionID, domain.ErrInvalidPath)
	})
}

// SetQuestionType changes the type and normalises the answer to fit it.
func (s *Store) SetQuestionType(index int, t domain.QuestionType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown question type %q", t)
	}
	return s.mutate(func() error { return s.setQuestionType(index, t) })
}

// ModifyQuestion applies a shallow patch to the question at index.
func (s *Store) ModifyQuestion(index int, patch QuestionPatch) error {
	if patch.Type != nil && !patch.Type.Valid() {
		return fmt.Errorf("unknown question type %q", *patch.Type)
	}
	return s.mutate(func() error {
		pair, err := s.pairAt(index)
		if err != nil {
			return err
		}
		if patch.Caption != nil {
			pair.Question.Caption = *patch.Caption
			if err := s.replaceQuestion(index, pair.Question); err != nil {
				return err
			}
		}
		if patch.AnswerOptions != nil {
			if err := s.setAnswerOptions(index, patch.AnswerOptions); err != nil {
				return err
			}
		}
		if patch.Type != nil {
			return s.setQuestionType(index, *patch.Type)
		}
		return nil
	})
}

// AddAnswerOption appends an option with a fresh id.
func (s *Store) AddAnswerOption(index int, value string) (domain.AnswerOption, error) {
	opt := domain.NewAnswerOption(value)
	err := s.mutate(func() error {
		pair, err := s.pairAt(index)
		if err != nil {
			return err
		}
		return s.setAnswerOptions(index, append(pair.Question.AnswerOptions, opt))
	})
	if err != nil {
		return domain.AnswerOption{}, err
	}
	return opt, nil
}

// RemoveAnswerOption drops the option with optionID. A question always keeps
// at least one option, so removing the last one does nothing.
func (s *Store) RemoveAnswerOption(index int, optionID string) error {
	return s.mutate(func() error {
		pair, err := s.pairAt(index)
		if err != nil {
			return err
		}
		options := pair.Question.AnswerOptions
		if len(options) <= 1 {
			return nil
		}
		kept := make([]domain.AnswerOption, 0, len(options))
		for _, opt := range options {
			if opt.ID != optionID {
				kept = append(kept, opt)
			}
		}
		if len(kept) == len(options) {
			return nil
		}
		return s.setAnswerOptions(index, kept)
	})
}

// CreateQuestion appends a default question with an empty answer and returns
// its index.
func (s *Store) CreateQuestion() (int, error) {
	index := -1
	err := s.mutate(func() error {
		quiz, err := s.snapshot()
		if err != nil {
			return err
		}
		answers := alignedAnswers(quiz)
		q := domain.NewQuestion()
		questions := append(quiz.Questions, q)
		answers = append(answers, domain.NewAnswer(q.ID))
		info := quiz.Info
		info.QuestionsCount = len(questions)
		index = len(questions) - 1
		return s.modify(QuizPatch{Info: &info, Questions: questions, Answers: answers})
	})
	return index, err
}

// RemoveQuestion drops the question at index together with its answer. The
// last remaining question cannot be removed.
func (s *Store) RemoveQuestion(index int) error {
	return s.mutate(func() error {
		quiz, err := s.snapshot()
		if err != nil {
			return err
		}
		if index < 0 || index >= len(quiz.Questions) {
			return domain.ErrIndexOutOfRange
		}
		if len(quiz.Questions) <= 1 {
			return nil
		}
		answers := alignedAnswers(quiz)
		questions := append(quiz.Questions[:index:index], quiz.Questions[index+1:]...)
		answers = append(answers[:index:index], answers[index+1:]...)
		info := quiz.Info
		info.QuestionsCount = len(questions)
		return s.modify(QuizPatch{Info: &info, Questions: questions, Answers: answers})
	})
}

// MoveQuestion reorders a question and its answer together.
func (s *Store) MoveQuestion(from, to int) error {
	return s.mutate(func() error {
		quiz, err := s.snapshot()
		if err != nil {
			return err
		}
		n := len(quiz.Questions)
		if from < 0 || from >= n || to < 0 || to >= n {
			return domain.ErrIndexOutOfRange
		}
		if from == to {
			return nil
		}
		answers := alignedAnswers(quiz)
		return s.modify(QuizPatch{
			Questions: move(quiz.Questions, from, to),
			Answers:   move(answers, from, to),
		})
	})
}

func (s *Store) setAnswer(index int, answer []string) error {
	return s.updateAnswer(index, func(a *domain.Answer, _ domain.Question) error {
		a.Answer = append([]string{}, answer...)
		return nil
	})
}

func (s *Store) setAnswerOptions(index int, options []domain.AnswerOption) error {
	return s.dispatch.Run(func() error {
		pair, err := s.pairAt(index)
		if err != nil {
			return err
		}
		pair.Question.AnswerOptions = append([]domain.AnswerOption{}, options...)
		if err := s.replaceQuestion(index, pair.Question); err != nil {
			return err
		}
		if pair.Question.Type == domain.WriteAnswer {
			return nil
		}
		kept := pruneAnswer(pair.Answer.Answer, options)
		if len(kept) == len(pair.Answer.Answer) {
			return nil
		}
		return s.setAnswer(index, kept)
	})
}

func (s *Store) setQuestionType(index int, t domain.QuestionType) error {
	return s.dispatch.Run(func() error {
		pair, err := s.pairAt(index)
		if err != nil {
			return err
		}
		from := pair.Question.Type
		pair.Question.Type = t
		if err := s.replaceQuestion(index, pair.Question); err != nil {
			return err
		}
		if from == t {
			return nil
		}
		return s.updateAnswer(index, func(a *domain.Answer, _ domain.Question) error {
			switch {
			case from == domain.WriteAnswer || t == domain.WriteAnswer:
				a.Answer = []string{}
				a.Config = domain.AnswerConfig{}
			case t == domain.OneTrue && len(a.Answer) > 1:
				a.Answer = a.Answer[:1]
			}
			return nil
		})
	})
}

func (s *Store) updateAnswer(index int, fn func(a *domain.Answer, q domain.Question) error) error {
	return s.dispatch.Run(func() error {
		quiz, err := s.snapshot()
		if err != nil {
			return err
		}
		if index < 0 || index >= len(quiz.Questions) {
			return domain.ErrIndexOutOfRange
		}
		answers := alignedAnswers(quiz)
		a := answers[index]
		if err := fn(&a, quiz.Questions[index]); err != nil {
			return err
		}
		answers[index] = a
		return s.modify(QuizPatch{Answers: answers})
	})
}

func (s *Store) replaceQuestion(index int, q domain.Question) error {
	quiz, err := s.snapshot()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(quiz.Questions) {
		return domain.ErrIndexOutOfRange
	}
	quiz.Questions[index] = q
	return s.modify(QuizPatch{Questions: quiz.Questions})
}

func (s *Store) pairAt(index int) (domain.QuestionPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.QuestionPair{}, domain.ErrNotLoaded
	}
	pair, ok := s.pairLocked(index)
	if !ok {
		return domain.QuestionPair{}, domain.ErrIndexOutOfRange
	}
	return pair.Clone(), nil
}

// alignedAnswers returns one answer per question, padding with empty answers.
func alignedAnswers(quiz domain.Quiz) []domain.Answer {
	answers := make([]domain.Answer, len(quiz.Questions))
	for i := range quiz.Questions {
		answers[i] = answerAt(quiz, i)
	}
	return answers
}

func pruneAnswer(answer []string, options []domain.AnswerOption) []string {
	ids := make(map[string]struct{}, len(options))
	for _, opt := range options {
		ids[opt.ID] = struct{}{}
	}
	kept := make([]string, 0, len(answer))
	for _, id := range answer {
		if _, ok := ids[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

func move[T any](items []T, from, to int) []T {
	out := make([]T, 0, len(items))
	item := items[from]
	for i, v := range items {
		if i == from {
			continue
		}
		if len(out) == to {
			out = append(out, item)
		}
		out = append(out, v)
	}
	if len(out) == to {
		out = append(out, item)
	}
	return out
}
