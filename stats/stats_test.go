package stats

import "testing"

func TestMergeDaily(t *testing.T) {
	answers := map[string]dailyAnswers{
		"2026-08-01": {answered: 10, correct: 7},
		"2026-08-03": {answered: 4, correct: 4},
	}
	collected := map[string]int{
		"2026-08-01": 2,
		"2026-08-02": 5, // collected-only day with no answers
	}

	points := mergeDaily(answers, collected)

	if len(points) != 3 {
		t.Fatalf("expected 3 days, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i-1].Date >= points[i].Date {
			t.Fatalf("points must be sorted by date: %v", points)
		}
	}
	if points[0] != (DailyPoint{Date: "2026-08-01", Answered: 10, Correct: 7, Collected: 2}) {
		t.Fatalf("unexpected first point: %+v", points[0])
	}
	if points[1] != (DailyPoint{Date: "2026-08-02", Collected: 5}) {
		t.Fatalf("a collected-only day must still appear: %+v", points[1])
	}
	if points[2] != (DailyPoint{Date: "2026-08-03", Answered: 4, Correct: 4}) {
		t.Fatalf("an answers-only day must report zero collected: %+v", points[2])
	}
}

func TestMergeDaily_empty(t *testing.T) {
	points := mergeDaily(map[string]dailyAnswers{}, map[string]int{})
	if len(points) != 0 {
		t.Fatalf("expected empty slice, got %v", points)
	}
}
