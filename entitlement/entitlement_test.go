package entitlement

import (
	"testing"
	"time"
)

func TestEntitled(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	if Entitled(false, &future, now) {
		t.Fatalf("unpaid user must not be entitled")
	}
	if Entitled(true, nil, now) {
		t.Fatalf("paid flag without expiry must not be entitled")
	}
	if Entitled(true, &past, now) {
		t.Fatalf("expired timestamp must not be entitled")
	}
	if !Entitled(true, &future, now) {
		t.Fatalf("paid with future expiry must be entitled")
	}
}

func TestExtend_stacksFromCurrentExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now.AddDate(0, 0, 10)

	got := Extend(&current, now)
	want := current.AddDate(0, TermMonths, 0)
	if !got.Equal(want) {
		t.Fatalf("expected stacking from current expiry: got %v want %v", got, want)
	}
}

func TestExtend_startsFromNowWhenExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := now.AddDate(0, 0, -3)

	got := Extend(&expired, now)
	want := now.AddDate(0, TermMonths, 0)
	if !got.Equal(want) {
		t.Fatalf("expired subscription must restart from now: got %v want %v", got, want)
	}
	if got2 := Extend(nil, now); !got2.Equal(want) {
		t.Fatalf("absent expiry must start from now: got %v", got2)
	}
}

func TestExtendDays(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now.AddDate(0, 1, 0)

	got := ExtendDays(&current, now, 5)
	if want := current.AddDate(0, 0, 5); !got.Equal(want) {
		t.Fatalf("reward days must stack on active expiry: got %v want %v", got, want)
	}
	got = ExtendDays(nil, now, 5)
	if want := now.AddDate(0, 0, 5); !got.Equal(want) {
		t.Fatalf("reward days for unpaid user start from now: got %v want %v", got, want)
	}
}
