package policy

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/tdh8316/usernamescan/internal/probe"
)

// scripted returns outcomes in order and counts calls.
func scripted(outcomes ...probe.Outcome) (Attempt, *int) {
	calls := 0
	return func(context.Context) probe.Outcome {
		calls++
		if calls > len(outcomes) {
			return probe.Unknown
		}
		return outcomes[calls-1]
	}, &calls
}

func TestResolve(t *testing.T) {
	t.Parallel()

	log, _ := test.NewNullLogger()

	cases := []struct {
		name      string
		outcomes  []probe.Outcome
		def       probe.Outcome
		want      Decision
		wantCalls int
	}{
		{"first attempt definite", []probe.Outcome{probe.Taken}, probe.Available, Decision{Outcome: probe.Taken, Attempts: 1}, 1},
		{"second attempt definite", []probe.Outcome{probe.Unknown, probe.Available}, probe.Taken, Decision{Outcome: probe.Available, Attempts: 2}, 2},
		{"never reaches third attempt", []probe.Outcome{probe.Unknown, probe.Unknown, probe.Available}, probe.Taken, Decision{Outcome: probe.Taken, Attempts: 2, Defaulted: true}, 2},
		{"default available", nil, probe.Available, Decision{Outcome: probe.Available, Attempts: 2, Defaulted: true}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			attempt, calls := scripted(tc.outcomes...)
			got := Resolve(context.Background(), attempt, tc.def, log)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantCalls, *calls)
		})
	}
}

func TestResolveDefaultIsDeterministic(t *testing.T) {
	t.Parallel()

	for _, def := range []probe.Outcome{probe.Taken, probe.Available} {
		for range 10 {
			attempt, _ := scripted()
			d := Resolve(context.Background(), attempt, def, nil)
			assert.Equal(t, def, d.Outcome)
			assert.True(t, d.Defaulted)
		}
	}
}

func TestResolveCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempt, calls := scripted(probe.Available)
	d := Resolve(ctx, attempt, probe.Taken, nil)
	assert.Equal(t, Decision{Outcome: probe.Taken, Attempts: 0, Defaulted: true}, d)
	assert.Zero(t, *calls)
}

func TestResolveCancelledBetweenAttempts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempt := func(context.Context) probe.Outcome {
		calls++
		cancel()
		return probe.Unknown
	}

	d := Resolve(ctx, attempt, probe.Available, nil)
	assert.Equal(t, probe.Available, d.Outcome)
	assert.Equal(t, 1, d.Attempts)
	assert.Equal(t, 1, calls)
}
