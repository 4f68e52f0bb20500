package validation

import (
	"errors"
	"testing"

	"quizee-service/internal/domain"
)

func labelled(typ, label string) domain.ValidationError {
	return domain.ValidationError{
		Type:    typ,
		Message: label + " failed",
		Path:    SplitLabel(label),
		Context: &domain.ValidationContext{Label: label},
	}
}

func TestFilterErrorsReturnsFirstMatch(t *testing.T) {
	errs := []domain.ValidationError{
		labelled("string.required", "info.caption"),
		labelled("string.required", "questions[0].caption"),
		labelled("array.min", "questions[0].answerOptions"),
	}

	got := FilterErrors(errs, "questions[0]")
	if len(got) != 1 || !got["string.required"] {
		t.Fatalf("expected first match string.required, got %v", got)
	}
	if got := FilterErrors(errs, "answers"); got != nil {
		t.Fatalf("expected no error, got %v", got)
	}
}

func TestFilterErrorsSkipsMissingContext(t *testing.T) {
	errs := []domain.ValidationError{
		{Type: "any.invalid", Message: "no context"},
		labelled("string.required", "info.caption"),
	}
	got := FilterErrors(errs, "info")
	if !got["string.required"] {
		t.Fatalf("expected contextual error, got %v", got)
	}
	if got := FilterErrors([]domain.ValidationError{{Type: "x"}}, ""); got != nil {
		t.Fatalf("expected nil for context-less errors, got %v", got)
	}
}

func TestMatcherSiblingIndexes(t *testing.T) {
	errs := []domain.ValidationError{labelled("array.min", "answers[10].answer")}

	if PrefixMatch.Filter(errs, "answers[1]") == nil {
		t.Fatalf("prefix matching should treat answers[10] as answers[1]")
	}
	if SegmentMatch.Filter(errs, "answers[1]") != nil {
		t.Fatalf("segment matching should not match a sibling index")
	}
	if SegmentMatch.Filter(errs, "answers[10]") == nil {
		t.Fatalf("segment matching should match its own index")
	}
}

func TestParseMatcher(t *testing.T) {
	for raw, want := range map[string]Matcher{"": PrefixMatch, "prefix": PrefixMatch, "Segment": SegmentMatch} {
		got, err := ParseMatcher(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMatcher(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseMatcher("regex"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestScopedLabel(t *testing.T) {
	cases := []struct {
		index int
		path  string
		want  string
	}{
		{0, "question", "questions[0]"},
		{2, "question.caption", "questions[2].caption"},
		{1, "question.answerOptions[3]", "questions[1].answerOptions[3]"},
		{4, "answer", "answers[4]"},
		{4, "answer.config", "answers[4].config"},
	}
	for _, tc := range cases {
		got, err := ScopedLabel(tc.index, tc.path)
		if err != nil {
			t.Fatalf("ScopedLabel(%d, %q): %v", tc.index, tc.path, err)
		}
		if got != tc.want {
			t.Fatalf("ScopedLabel(%d, %q) = %q, want %q", tc.index, tc.path, got, tc.want)
		}
	}

	for _, bad := range []string{"info.caption", "questions", "answers[0]", ""} {
		if _, err := ScopedLabel(0, bad); !errors.Is(err, domain.ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath for %q, got %v", bad, err)
		}
	}
}

func TestSplitLabel(t *testing.T) {
	got := SplitLabel("questions[0].answerOptions[12].value")
	want := []string{"questions", "0", "answerOptions", "12", "value"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestValidateDefaultQuizReportsUnfilledFields(t *testing.T) {
	v := New()
	errs := v.Validate(domain.NewQuiz())

	for _, label := range []string{"questions[0].caption", "questions[0].answerOptions[0].value", "answers[0].answer"} {
		if FilterErrors(errs, label) == nil {
			t.Fatalf("expected an error at %s, got %+v", label, errs)
		}
	}
	if FilterErrors(errs, "info") != nil {
		t.Fatalf("default info should be valid, got %+v", errs)
	}
}

func TestValidateCompleteQuizPasses(t *testing.T) {
	v := New()
	if errs := v.Validate(validQuiz()); errs != nil {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}

func TestValidateCrossFieldRules(t *testing.T) {
	v := New()

	quiz := validQuiz()
	quiz.Info.QuestionsCount = 5
	quiz.Answers[0].Answer = []string{"o1", "o2"}
	quiz.Answers[1].AnswerTo = "other"

	errs := v.Validate(quiz)
	checks := map[string]string{
		"info.questionsCount": "number.eqlen",
		"answers[0].answer":   "array.len",
		"answers[1].answerTo": "string.answerto",
	}
	for label, typ := range checks {
		got := FilterErrors(errs, label)
		if !got[typ] {
			t.Fatalf("expected %s at %s, got %v (all: %+v)", typ, label, got, errs)
		}
	}
}

func TestValidateDuplicateOptionIDs(t *testing.T) {
	v := New()
	quiz := validQuiz()
	quiz.Questions[0].AnswerOptions[1].ID = quiz.Questions[0].AnswerOptions[0].ID

	errs := v.Validate(quiz)
	if got := FilterErrors(errs, "questions[0].answerOptions"); !got["array.unique"] {
		t.Fatalf("expected array.unique, got %v (all: %+v)", got, errs)
	}
}

func TestValidationErrorShape(t *testing.T) {
	v := New()
	quiz := validQuiz()
	quiz.Questions[1].Caption = ""

	errs := v.Validate(quiz)
	if len(errs) != 1 {
		t.Fatalf("expected a single error, got %+v", errs)
	}
	e := errs[0]
	if e.Type != "string.required" || e.Context == nil || e.Context.Label != "questions[1].caption" || e.Context.Key != "caption" {
		t.Fatalf("unexpected error shape: %+v %+v", e, e.Context)
	}
	if len(e.Path) != 3 || e.Path[0] != "questions" || e.Path[1] != "1" || e.Path[2] != "caption" {
		t.Fatalf("unexpected path: %v", e.Path)
	}
}

func validQuiz() domain.Quiz {
	return domain.Quiz{
		Info: domain.QuizInfo{Caption: "Capitals", QuestionsCount: 3},
		Questions: []domain.Question{
			{ID: "q1", Caption: "France?", Type: domain.OneTrue, AnswerOptions: []domain.AnswerOption{{ID: "o1", Value: "Paris"}, {ID: "o2", Value: "Lyon"}}},
			{ID: "q2", Caption: "Pick rivers", Type: domain.SeveralTrue, AnswerOptions: []domain.AnswerOption{{ID: "o3", Value: "Seine"}, {ID: "o4", Value: "Loire"}}},
			{ID: "q3", Caption: "Capital of Italy", Type: domain.WriteAnswer, AnswerOptions: []domain.AnswerOption{{ID: "o5"}}},
		},
		Answers: []domain.Answer{
			{AnswerTo: "q1", Answer: []string{"o1"}},
			{AnswerTo: "q2", Answer: []string{"o3", "o4"}},
			{AnswerTo: "q3", Answer: []string{"Rome"}, Config: domain.AnswerConfig{EqualCase: false}},
		},
	}
}
