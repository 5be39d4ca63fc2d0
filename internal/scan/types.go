package scan

import (
	"errors"
	"time"

	"github.com/tdh8316/usernamescan/internal/probe"
)

var (
	ErrEmptyHandle     = errors.New("handle is empty")
	ErrUnknownPlatform = errors.New("unknown platform")
)

type Config struct {
	// Concurrency caps simultaneous platform probes per scan. Zero means one
	// goroutine per platform.
	Concurrency int
}

// Result is the resolved answer for one platform. Status is never Unknown.
type Result struct {
	PlatformID string        `json:"platformId"`
	Name       string        `json:"name"`
	Status     probe.Outcome `json:"status"`
	ProfileURL string        `json:"profileUrl"`
	SignupURL  string        `json:"signupUrl"`

	Defaulted bool          `json:"defaulted"`
	Attempts  int           `json:"attempts"`
	Elapsed   time.Duration `json:"elapsedNs"`
}

type Report struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Results     []Result  `json:"results"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Count returns how many results have status o.
func (r *Report) Count(o probe.Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == o {
			n++
		}
	}
	return n
}

func (r *Report) Lookup(platformID string) (Result, bool) {
	for _, res := range r.Results {
		if res.PlatformID == platformID {
			return res, true
		}
	}
	return Result{}, false
}

type ValidationFailure struct {
	PlatformID string
	Claimed    string
	Unclaimed  string

	ClaimedOutcome   probe.Outcome
	UnclaimedOutcome probe.Outcome
	Err              error
}
