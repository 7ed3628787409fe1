package parser

import "errors"

var (
	ErrEmptyResult       = errors.New("no Q&A sessions found")
	ErrAllQuestionsEmpty = errors.New("all questions are empty")
)

// Validate is the gate between parsing and everything downstream. An outcome
// whose answers are all empty is still accepted.
func Validate(o Outcome) error {
	if len(o.Turns) == 0 {
		return ErrEmptyResult
	}
	for _, t := range o.Turns {
		if t.Question != "" {
			return nil
		}
	}
	return ErrAllQuestionsEmpty
}

// UserMessage maps a validation failure to text fit for the person who
// uploaded the transcript.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyResult):
		return "No Q&A sessions found. Please check the format or try using the browser scraper."
	case errors.Is(err, ErrAllQuestionsEmpty):
		return "All questions are empty. Please check the format."
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}
