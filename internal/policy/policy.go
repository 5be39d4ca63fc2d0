// Package policy turns an unreliable probe into a definite answer: one retry,
// then the platform's conservative default.
package policy

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/usernamescan/internal/probe"
)

// MaxAttempts is the number of probe attempts before the default applies.
const MaxAttempts = 2

type Decision struct {
	Outcome   probe.Outcome
	Attempts  int
	Defaulted bool
}

// Attempt is one full evidence-gathering and classification pass.
type Attempt func(ctx context.Context) probe.Outcome

// Resolve runs attempt at most MaxAttempts times and returns the first
// definite outcome, or def. def must be Available or Taken. A cancelled
// context stops further attempts and yields def.
func Resolve(ctx context.Context, attempt Attempt, def probe.Outcome, log logrus.FieldLogger) Decision {
	if log == nil {
		log = logrus.StandardLogger()
	}

	d := Decision{}
	for d.Attempts < MaxAttempts {
		if ctx.Err() != nil {
			break
		}
		d.Attempts++
		out := attempt(ctx)
		if out.Definite() {
			d.Outcome = out
			return d
		}
		log.WithField("attempt", d.Attempts).Debug("inconclusive")
	}

	d.Outcome = def
	d.Defaulted = true
	log.WithFields(logrus.Fields{"attempts": d.Attempts, "default": def}).Debug("applied default")
	return d
}
