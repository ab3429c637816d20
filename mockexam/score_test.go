package mockexam

import (
	"testing"

	"c3exam-backend/questions"
)

func TestScorePoints_singleAndJudge(t *testing.T) {
	cases := []struct {
		qType    string
		correct  string
		selected string
		want     int
	}{
		{questions.TypeSingle, "B", "B", 1},
		{questions.TypeSingle, "B", "A", 0},
		{questions.TypeJudge, "A", "A", 1},
		{questions.TypeJudge, "A", "B", 0},
		{questions.TypeSingle, "B", "", 0},
	}
	for _, tc := range cases {
		if got := ScorePoints(tc.qType, tc.correct, tc.selected); got != tc.want {
			t.Errorf("ScorePoints(%s, %q, %q) = %d, want %d", tc.qType, tc.correct, tc.selected, got, tc.want)
		}
	}
}

func TestScorePoints_multipleChoiceLadder(t *testing.T) {
	// Correct set is {A, C}.
	cases := []struct {
		selected string
		want     int
	}{
		{"AC", 2},
		{"CA", 2}, // order must not matter
		{"A", 1},  // strict subset
		{"C", 1},
		{"AB", 0}, // any wrong option voids the question
		{"ABC", 0},
		{"B", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := ScorePoints(questions.TypeMultiple, "AC", tc.selected); got != tc.want {
			t.Errorf("ScorePoints(multiple, AC, %q) = %d, want %d", tc.selected, got, tc.want)
		}
	}
}

func TestMaxPoints(t *testing.T) {
	if MaxPoints(questions.TypeMultiple) != 2 {
		t.Fatal("multiple choice questions carry 2 points")
	}
	if MaxPoints(questions.TypeSingle) != 1 || MaxPoints(questions.TypeJudge) != 1 {
		t.Fatal("single and judge questions carry 1 point")
	}
}
