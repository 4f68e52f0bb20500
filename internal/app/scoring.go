package app

import (
	"context"
	"fmt"
	"strings"

	"quizee-service/internal/domain"
)

// CheckAnswers scores a finished run: one point per question answered
// correctly. Questions the player skipped score nothing.
func (s *QuizeeService) CheckAnswers(ctx context.Context, quizID string, answers []domain.PlayerAnswer) (domain.Result, error) {
	quiz, err := s.store.GetQuizee(ctx, quizID)
	if err != nil {
		return domain.Result{}, err
	}
	score, err := scoreAnswers(quiz, answers)
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Result{QuizID: quizID, Score: score, Total: len(quiz.Questions)}, nil
}

func scoreAnswers(quiz domain.Quiz, answers []domain.PlayerAnswer) (int, error) {
	questions := make(map[string]domain.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions[q.ID] = q
	}
	expected := make(map[string]domain.Answer, len(quiz.Answers))
	for _, a := range quiz.Answers {
		expected[a.AnswerTo] = a
	}

	score := 0
	scored := make(map[string]struct{}, len(answers))
	for _, given := range answers {
		question, ok := questions[given.AnswerTo]
		if !ok {
			return 0, fmt.Errorf("answer to %q: %w", given.AnswerTo, domain.ErrQuestionNotFound)
		}
		if _, dup := scored[given.AnswerTo]; dup {
			continue
		}
		scored[given.AnswerTo] = struct{}{}
		want, ok := expected[question.ID]
		if !ok {
			continue
		}
		if answerMatches(question.Type, want, given.Answer) {
			score++
		}
	}
	return score, nil
}

func answerMatches(t domain.QuestionType, want domain.Answer, given []string) bool {
	if t == domain.WriteAnswer {
		if len(given) == 0 {
			return false
		}
		got := strings.TrimSpace(given[0])
		for _, accepted := range want.Answer {
			accepted = strings.TrimSpace(accepted)
			if want.Config.EqualCase && got == accepted {
				return true
			}
			if !want.Config.EqualCase && strings.EqualFold(got, accepted) {
				return true
			}
		}
		return false
	}
	return sameSet(want.Answer, given)
}

func sameSet(a, b []string) bool {
	left := make(map[string]struct{}, len(a))
	for _, v := range a {
		left[v] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, ok := left[v]; !ok {
			return false
		}
		right[v] = struct{}{}
	}
	return len(left) == len(right)
}
