package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"quizee-service/internal/domain"
)

// Validator checks a quizee and reports every problem as a path-tagged
// domain.ValidationError whose label uses the json field names, e.g.
// "questions[0].caption".
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(quizRules, domain.Quiz{})
	return &Validator{v: v}
}

// Validate returns nil for a valid quizee.
func (v *Validator) Validate(quiz domain.Quiz) []domain.ValidationError {
	err := v.v.Struct(quiz)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []domain.ValidationError{{
			Type:    "any.invalid",
			Message: err.Error(),
			Path:    []string{},
			Context: &domain.ValidationContext{},
		}}
	}
	out := make([]domain.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, toValidationError(fe))
	}
	return out
}

func toValidationError(fe validator.FieldError) domain.ValidationError {
	label := fe.Namespace()
	if i := strings.IndexByte(label, '.'); i >= 0 {
		label = label[i+1:]
	}
	path := SplitLabel(label)
	key := ""
	if len(path) > 0 {
		key = path[len(path)-1]
	}
	kind := kindName(fe.Kind())
	return domain.ValidationError{
		Type:    kind + "." + fe.Tag(),
		Message: message(label, kind, fe.Tag(), fe.Param()),
		Path:    path,
		Context: &domain.ValidationContext{Label: label, Key: key},
	}
}

// SplitLabel turns "questions[0].caption" into ["questions", "0", "caption"].
func SplitLabel(label string) []string {
	parts := make([]string, 0, 4)
	for _, seg := range strings.Split(label, ".") {
		for seg != "" {
			open := strings.IndexByte(seg, '[')
			if open < 0 {
				parts = append(parts, seg)
				break
			}
			if open > 0 {
				parts = append(parts, seg[:open])
			}
			end := strings.IndexByte(seg, ']')
			if end < open {
				parts = append(parts, seg[open:])
				break
			}
			parts = append(parts, seg[open+1:end])
			seg = seg[end+1:]
		}
	}
	return parts
}

func kindName(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	default:
		return "any"
	}
}

func message(label, kind, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%q is required", label)
	case "min":
		if kind == "array" {
			return fmt.Sprintf("%q must contain at least %s items", label, param)
		}
		return fmt.Sprintf("%q must be at least %s characters long", label, param)
	case "max":
		if kind == "array" {
			return fmt.Sprintf("%q must contain at most %s items", label, param)
		}
		return fmt.Sprintf("%q must be at most %s characters long", label, param)
	case "len":
		return fmt.Sprintf("%q must contain exactly %s items", label, param)
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", label, param)
	case "unique":
		return fmt.Sprintf("%q contains a duplicate %s", label, strings.ToLower(param))
	case "eqlen":
		return fmt.Sprintf("%q must equal the number of questions (%s)", label, param)
	case "answerto":
		return fmt.Sprintf("%q must reference question %s", label, param)
	case "option":
		return fmt.Sprintf("%q must reference an answer option", label)
	default:
		return fmt.Sprintf("%q failed on %s", label, tag)
	}
}

// quizRules covers the cross-field invariants struct tags cannot express.
func quizRules(sl validator.StructLevel) {
	quiz := sl.Current().Interface().(domain.Quiz)

	if quiz.Info.QuestionsCount != len(quiz.Questions) {
		sl.ReportError(quiz.Info.QuestionsCount, "info.questionsCount", "Info.QuestionsCount", "eqlen", strconv.Itoa(len(quiz.Questions)))
	}
	if len(quiz.Answers) != len(quiz.Questions) {
		sl.ReportError(quiz.Answers, "answers", "Answers", "len", strconv.Itoa(len(quiz.Questions)))
	}

	for i, q := range quiz.Questions {
		if q.Type != domain.WriteAnswer {
			for j, opt := range q.AnswerOptions {
				if strings.TrimSpace(opt.Value) == "" {
					sl.ReportError(opt.Value,
						fmt.Sprintf("questions[%d].answerOptions[%d].value", i, j),
						fmt.Sprintf("Questions[%d].AnswerOptions[%d].Value", i, j),
						"required", "")
				}
			}
		}
		if i >= len(quiz.Answers) {
			continue
		}
		a := quiz.Answers[i]
		if a.AnswerTo != q.ID {
			sl.ReportError(a.AnswerTo, fmt.Sprintf("answers[%d].answerTo", i), fmt.Sprintf("Answers[%d].AnswerTo", i), "answerto", q.ID)
		}
		if q.Type == domain.WriteAnswer {
			continue
		}
		if q.Type == domain.OneTrue && len(a.Answer) > 1 {
			sl.ReportError(a.Answer, fmt.Sprintf("answers[%d].answer", i), fmt.Sprintf("Answers[%d].Answer", i), "len", "1")
		}
		ids := make(map[string]struct{}, len(q.AnswerOptions))
		for _, opt := range q.AnswerOptions {
			ids[opt.ID] = struct{}{}
		}
		for _, chosen := range a.Answer {
			if _, ok := ids[chosen]; !ok && chosen != "" {
				sl.ReportError(a.Answer, fmt.Sprintf("answers[%d].answer", i), fmt.Sprintf("Answers[%d].Answer", i), "option", "")
				break
			}
		}
	}
}
