package services

import "time"

// Clock abstracts the current time so deadline logic is testable
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
