package screener

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"litreview/internal/screening"
)

const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusUnclear = "unclear"
)

type Criterion struct {
	Status   string `json:"status"`
	Evidence string `json:"evidence"`
}

type Notes struct {
	C1 Criterion `json:"c1"`
	C2 Criterion `json:"c2"`
	C3 Criterion `json:"c3"`
	C4 Criterion `json:"c4"`
}

// Result is a parsed screening answer.
type Result struct {
	Decision string `json:"decision"`
	Notes    Notes  `json:"notes"`
}

var ErrUnparseable = errors.New("screening answer is not a JSON object")

// Fallback is the answer recorded when the model output cannot be used.
func Fallback() Result {
	unclear := Criterion{Status: StatusUnclear}
	return Result{
		Decision: screening.Unsure,
		Notes:    Notes{C1: unclear, C2: unclear, C3: unclear, C4: unclear},
	}
}

// NotesJSON is the Notes cell written to batch files.
func (r Result) NotesJSON() string {
	b, _ := json.Marshal(r.Notes)
	return string(b)
}

// ParseDecision reads the first JSON object in text. Unknown decisions become
// unsure and are reported alongside the result. Criterion statuses outside
// pass, fail and unclear are recorded as unclear. Text without a JSON object
// yields Fallback and ErrUnparseable.
func ParseDecision(text string) (Result, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Fallback(), ErrUnparseable
	}
	var raw struct {
		Decision string `json:"decision"`
		Notes    Notes  `json:"notes"`
	}
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err != nil {
		return Fallback(), fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	res := Result{Decision: strings.ToLower(strings.TrimSpace(raw.Decision)), Notes: raw.Notes}
	for _, c := range []*Criterion{&res.Notes.C1, &res.Notes.C2, &res.Notes.C3, &res.Notes.C4} {
		c.Status = strings.ToLower(strings.TrimSpace(c.Status))
		switch c.Status {
		case StatusPass, StatusFail, StatusUnclear:
		default:
			c.Status = StatusUnclear
		}
	}
	switch res.Decision {
	case screening.Include, screening.Exclude, screening.Unsure:
		return res, nil
	}
	bad := raw.Decision
	res.Decision = screening.Unsure
	return res, fmt.Errorf("invalid decision %q", bad)
}
