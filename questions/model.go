package questions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Question types. Answers are label strings ("A", "BC", ...); for multiple
// choice the label order is not significant.
const (
	TypeSingle   = "single"
	TypeMultiple = "multiple"
	TypeJudge    = "judge"
)

// Option is one selectable entry of a question. Options are stored as an
// ordered JSON list and validated at the storage boundary instead of being
// re-parsed informally on every read.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Question struct {
	ID          int       `json:"id"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	Options     []Option  `json:"options"`
	Answer      string    `json:"answer"`
	Explanation string    `json:"explanation"`
	Mnemonic    *string   `json:"mnemonic"`
	Category    *string   `json:"category"`
	Image       *string   `json:"image"`
	CreatedAt   time.Time `json:"-"`
}

// ParseOptions decodes and validates the serialized option list.
func ParseOptions(raw []byte) ([]Option, error) {
	var opts []Option
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("malformed options payload: %w", err)
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("options payload is empty")
	}
	seen := map[string]bool{}
	for i, o := range opts {
		label := strings.ToUpper(strings.TrimSpace(o.Label))
		if label == "" {
			return nil, fmt.Errorf("option %d has empty label", i)
		}
		if seen[label] {
			return nil, fmt.Errorf("duplicate option label %q", label)
		}
		seen[label] = true
		opts[i].Label = label
	}
	return opts, nil
}

// NormalizeLabels uppercases, deduplicates and sorts the answer labels so
// "CA" and "AC" compare equal.
func NormalizeLabels(answer string) string {
	seen := map[rune]bool{}
	labels := make([]string, 0, len(answer))
	for _, r := range strings.ToUpper(strings.TrimSpace(answer)) {
		if r < 'A' || r > 'Z' || seen[r] {
			continue
		}
		seen[r] = true
		labels = append(labels, string(r))
	}
	sort.Strings(labels)
	return strings.Join(labels, "")
}

// IsCorrect compares a submitted answer against the catalog answer.
// Order-independent for multiple choice per the answer format.
func (q *Question) IsCorrect(answer string) bool {
	return NormalizeLabels(answer) != "" && NormalizeLabels(answer) == NormalizeLabels(q.Answer)
}
