package mockexam

import (
	"strings"

	"c3exam-backend/questions"
)

// ScorePoints grades one answered question. Single-choice and judge
// questions are worth 1 point for an exact match. Multiple-choice questions
// are worth 2 for the exact set, 1 for a strict non-empty subset of the
// correct options, and 0 as soon as any wrong option is selected.
func ScorePoints(qType, correctAnswer, selected string) int {
	correct := questions.NormalizeLabels(correctAnswer)
	picked := questions.NormalizeLabels(selected)
	if picked == "" {
		return 0
	}
	if qType != questions.TypeMultiple {
		if picked == correct {
			return 1
		}
		return 0
	}
	for _, ch := range picked {
		if !strings.ContainsRune(correct, ch) {
			return 0
		}
	}
	if picked == correct {
		return 2
	}
	return 1
}

// MaxPoints is the per-question ceiling used when sizing an exam paper.
func MaxPoints(qType string) int {
	if qType == questions.TypeMultiple {
		return 2
	}
	return 1
}
