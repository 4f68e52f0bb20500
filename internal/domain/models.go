package domain

import "github.com/google/uuid"

// QuestionType selects the answer shape and the settings that apply to a question.
type QuestionType string

const (
	OneTrue     QuestionType = "ONE_TRUE"
	SeveralTrue QuestionType = "SEVERAL_TRUE"
	WriteAnswer QuestionType = "WRITE_ANSWER"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case OneTrue, SeveralTrue, WriteAnswer:
		return true
	}
	return false
}

const DefaultCaption = "New quizee"

type QuizInfo struct {
	ID             string `json:"id"`
	Caption        string `json:"caption" validate:"required,max=200"`
	Img            string `json:"img"`
	QuestionsCount int    `json:"questionsCount"`
}

type AnswerOption struct {
	ID    string `json:"id" validate:"required"`
	Value string `json:"value"`
}

type Question struct {
	ID            string         `json:"id" validate:"required"`
	Caption       string         `json:"caption" validate:"required,max=500"`
	Type          QuestionType   `json:"type" validate:"oneof=ONE_TRUE SEVERAL_TRUE WRITE_ANSWER"`
	AnswerOptions []AnswerOption `json:"answerOptions" validate:"min=1,unique=ID,dive"`
}

type AnswerConfig struct {
	EqualCase bool `json:"equalCase"`
}

type Answer struct {
	AnswerTo string       `json:"answerTo" validate:"required"`
	Answer   []string     `json:"answer" validate:"min=1,dive,required"`
	Config   AnswerConfig `json:"config"`
}

// Quiz is the authoring-side document. Players only ever see PublicQuiz.
type Quiz struct {
	Info      QuizInfo   `json:"info"`
	Questions []Question `json:"questions" validate:"min=1,dive"`
	Answers   []Answer   `json:"answers" validate:"dive"`
}

// PublicQuiz is a quiz without its answers.
type PublicQuiz struct {
	Info      QuizInfo   `json:"info"`
	Questions []Question `json:"questions"`
}

// QuestionPair joins a question with its answer and position. It is derived on
// demand and never stored.
type QuestionPair struct {
	Question Question `json:"question"`
	Answer   Answer   `json:"answer"`
	Index    int      `json:"index"`
}

// ValidationContext carries the dotted/bracketed label of the failing field,
// e.g. "questions[0].caption".
type ValidationContext struct {
	Label string `json:"label"`
	Key   string `json:"key"`
}

type ValidationError struct {
	Type    string             `json:"type"`
	Message string             `json:"message"`
	Path    []string           `json:"path"`
	Context *ValidationContext `json:"context,omitempty"`
}

// PlayerAnswer is what a player submits for one question.
type PlayerAnswer struct {
	AnswerTo string   `json:"answerTo"`
	Answer   []string `json:"answer"`
}

type Result struct {
	QuizID string `json:"quizId"`
	Score  int    `json:"score"`
	Total  int    `json:"total"`
}

func NewID() string {
	return uuid.NewString()
}

// NewQuiz returns the document a fresh editor starts from.
func NewQuiz() Quiz {
	q := NewQuestion()
	return Quiz{
		Info: QuizInfo{
			Caption:        DefaultCaption,
			QuestionsCount: 1,
		},
		Questions: []Question{q},
		Answers:   []Answer{NewAnswer(q.ID)},
	}
}

func NewQuestion() Question {
	return Question{
		ID:            NewID(),
		Type:          OneTrue,
		AnswerOptions: []AnswerOption{NewAnswerOption("")},
	}
}

func NewAnswerOption(value string) AnswerOption {
	return AnswerOption{ID: NewID(), Value: value}
}

func NewAnswer(questionID string) Answer {
	return Answer{AnswerTo: questionID, Answer: []string{}}
}

// Public drops the answers.
func (q Quiz) Public() PublicQuiz {
	c := q.Clone()
	return PublicQuiz{Info: c.Info, Questions: c.Questions}
}

func (q Quiz) Clone() Quiz {
	out := Quiz{Info: q.Info}
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, question := range q.Questions {
			out.Questions[i] = question.Clone()
		}
	}
	if q.Answers != nil {
		out.Answers = make([]Answer, len(q.Answers))
		for i, answer := range q.Answers {
			out.Answers[i] = answer.Clone()
		}
	}
	return out
}

func (q PublicQuiz) Clone() PublicQuiz {
	out := PublicQuiz{Info: q.Info}
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, question := range q.Questions {
			out.Questions[i] = question.Clone()
		}
	}
	return out
}

func (q Question) Clone() Question {
	if q.AnswerOptions != nil {
		q.AnswerOptions = append([]AnswerOption(nil), q.AnswerOptions...)
	}
	return q
}

func (a Answer) Clone() Answer {
	if a.Answer != nil {
		a.Answer = append([]string(nil), a.Answer...)
	}
	return a
}

func (p QuestionPair) Clone() QuestionPair {
	return QuestionPair{Question: p.Question.Clone(), Answer: p.Answer.Clone(), Index: p.Index}
}

func (e ValidationError) Clone() ValidationError {
	if e.Path != nil {
		e.Path = append([]string(nil), e.Path...)
	}
	if e.Context != nil {
		ctx := *e.Context
		e.Context = &ctx
	}
	return e
}

// CloneErrors deep-copies a validation error list.
func CloneErrors(errs []ValidationError) []ValidationError {
	if errs == nil {
		return nil
	}
	out := make([]ValidationError, len(errs))
	for i, e := range errs {
		out[i] = e.Clone()
	}
	return out
}
