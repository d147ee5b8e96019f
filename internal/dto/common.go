package dto

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format exchanged with the mobile client.
const DateLayout = "2006-01-02"

// SideEffects carries non-fatal failures of best-effort audit and notification writes.
type SideEffects struct {
	Warnings []string `json:"advertencias,omitempty"`
}

// Warn appends a warning when it is not empty.
func (s *SideEffects) Warn(warnings ...string) {
	for _, w := range warnings {
		if w != "" {
			s.Warnings = append(s.Warnings, w)
		}
	}
}

// Degraded reports whether any side effect failed.
func (s SideEffects) Degraded() bool {
	return len(s.Warnings) > 0
}

// ParseDate parses an optional YYYY-MM-DD value. Blank input yields nil.
func ParseDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, fmt.Errorf("fecha inválida %q, formato esperado AAAA-MM-DD", *raw)
	}
	return &t, nil
}
