package service

import (
	"encoding/json"

	"online_quiz_backend/internal/model"
)

// AnswerKey is the grading view of one quiz question: its type, the exact
// set of correct option ids and the marks it is worth inside the quiz.
type AnswerKey struct {
	Type       model.QuestionType
	CorrectIDs map[uint]struct{}
	Marks      int
}

// BuildAnswerKey joins questions with their quiz mapping. Questions carry
// correctness flags here; this structure never leaves the scoring path.
func BuildAnswerKey(questions []model.Question, mappings []model.QuizQuestion) map[uint]AnswerKey {
	marks := make(map[uint]int, len(mappings))
	for _, m := range mappings {
		marks[m.QuestionID] = m.Marks
	}

	key := make(map[uint]AnswerKey, len(questions))
	for _, q := range questions {
		correct := make(map[uint]struct{})
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct[opt.ID] = struct{}{}
			}
		}
		key[q.ID] = AnswerKey{
			Type:       q.Type,
			CorrectIDs: correct,
			Marks:      marks[q.ID],
		}
	}
	return key
}

// ScoreAttempt grades recorded answers against the key and returns the total
// plus the per-answer grading. Pure: identical inputs always produce
// identical output.
//
// Choice questions are all-or-nothing: the submitted option set must equal
// the correct set exactly, a partial match earns zero. Text questions are
// not auto-scored. Unanswered questions contribute zero.
func ScoreAttempt(answers []model.AttemptAnswer, key map[uint]AnswerKey) (int, []model.AttemptAnswer) {
	total := 0
	graded := make([]model.AttemptAnswer, len(answers))

	for i, ans := range answers {
		graded[i] = ans
		graded[i].IsCorrect = false
		graded[i].Marks = 0

		k, ok := key[ans.QuestionID]
		if !ok {
			continue
		}

		switch k.Type {
		case model.SingleChoice, model.MultipleChoice:
			selected, err := parseSelectedOptions(k.Type, ans.Answer)
			if err != nil {
				continue
			}
			if optionSetsEqual(selected, k.CorrectIDs) {
				graded[i].IsCorrect = true
				graded[i].Marks = k.Marks
				total += k.Marks
			}
		case model.TextQuestion:
			// Free text waits for a human grader; zero until then.
		}
	}

	return total, graded
}

// parseSelectedOptions decodes the stored answer payload into an option-id
// set: a single id for single_choice, an id array for multiple_choice.
func parseSelectedOptions(qType model.QuestionType, raw json.RawMessage) (map[uint]struct{}, error) {
	selected := make(map[uint]struct{})
	if qType == model.SingleChoice {
		var id uint
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, err
		}
		selected[id] = struct{}{}
		return selected, nil
	}

	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	return selected, nil
}

func optionSetsEqual(a, b map[uint]struct{}) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
