package service

import (
	"fmt"

	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

// QuizQuestion is one multiple-choice question of the placement quiz.
type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	answer   string
}

// QuizResult is a graded quiz.
type QuizResult struct {
	Score  int  `json:"score"`
	Total  int  `json:"total"`
	Passed bool `json:"passed"`
}

var placementQuiz = []QuizQuestion{
	{Question: "She ___ to the store every day.", Options: []string{"go", "goes", "went", "is going"}, answer: "goes"},
	{Question: `Choose the correct preposition: "He is interested ___ learning Spanish."`, Options: []string{"in", "on", "at", "for"}, answer: "in"},
	{Question: `What is the past tense of "begin"?`, Options: []string{"begun", "began", "beginned", "begin"}, answer: "began"},
	{Question: `"I have ___ apple for lunch."`, Options: []string{"a", "an", "the", "no article"}, answer: "an"},
	{Question: `"There isn't ___ milk left in the fridge."`, Options: []string{"some", "any", "no", "much"}, answer: "any"},
	{Question: "Which sentence is grammatically correct?", Options: []string{
		"They is going to the park.",
		"She don't like ice cream.",
		"He and I are good friends.",
		"Her and me went shopping.",
	}, answer: "He and I are good friends."},
	{Question: `"If I ___ you, I would study harder."`, Options: []string{"was", "were", "am", "be"}, answer: "were"},
	{Question: `"They have lived here ___ 2010."`, Options: []string{"since", "for", "from", "at"}, answer: "since"},
	{Question: `"The book is on the table, ___ it?"`, Options: []string{"is", "isn't", "does", "doesn't"}, answer: "isn't"},
	{Question: "My brother is taller ___ me.", Options: []string{"then", "than", "as", "from"}, answer: "than"},
}

// QuizQuestions returns the placement quiz without answers.
func QuizQuestions() []QuizQuestion {
	out := make([]QuizQuestion, len(placementQuiz))
	for i, q := range placementQuiz {
		out[i] = QuizQuestion{Question: q.Question, Options: append([]string(nil), q.Options...)}
	}
	return out
}

// GradeQuiz scores answers given in question order. Every question must be answered.
func GradeQuiz(answers []string) (QuizResult, error) {
	if len(answers) != len(placementQuiz) {
		return QuizResult{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Expected %d answers, got %d.", len(placementQuiz), len(answers)))
	}
	result := QuizResult{Total: len(placementQuiz)}
	for i, q := range placementQuiz {
		if answers[i] == "" {
			return QuizResult{}, appErrors.Clone(appErrors.ErrValidation, "Please fill out all required fields.")
		}
		if answers[i] == q.answer {
			result.Score++
		}
	}
	return result, nil
}
