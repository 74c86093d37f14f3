package shared

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"taskscore/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field issues so a request reports all of them at once.
// The zero value is ready to use.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// OneOf matches value case-insensitively against allowed and returns the
// canonical spelling. Empty values are left to Required.
func OneOf[T ~string](v *Validator, field, value string, allowed []T) (T, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	names := make([]string, len(allowed))
	for i, candidate := range allowed {
		if strings.EqualFold(value, string(candidate)) {
			return candidate, true
		}
		names[i] = string(candidate)
	}
	v.Add(field, "must be one of "+strings.Join(names, ", "))
	return "", false
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(raw)
	if err != nil || parsed.IsZero() {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

// Interval requires end to fall strictly after start.
func (v *Validator) Interval(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() {
		return
	}
	if !end.After(start) {
		v.Add(endField, "must be after "+startField)
	}
}

// MaxLength checks length in characters, not bytes.
func (v *Validator) MaxLength(field, value string, limit int) {
	if utf8.RuneCountInString(value) > limit {
		v.Add(field, fmt.Sprintf("must be at most %d characters", limit))
	}
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns a sorted copy, ordered by field then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Reason, b.Reason))
	})
	return out
}

// Reject writes a 400 with every collected issue and reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, api.CodeValidation, "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
