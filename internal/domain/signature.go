package domain

import (
	"strings"
	"time"
)

// Signature records who did something and when.
type Signature struct {
	User string
	Time time.Time
}

// Normalize trims the user and fills a zero time with now.
func (s Signature) Normalize(now time.Time) Signature {
	s.User = strings.TrimSpace(s.User)
	if s.Time.IsZero() {
		s.Time = now
	}
	s.Time = s.Time.UTC()
	return s
}
