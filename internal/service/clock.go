package service

import "time"

// Clock abstracts time so lifecycle rules are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock reports the current time in UTC. Everything persisted is UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
