package scenario

import (
	"errors"
	"fmt"
	"log"
)

// AssertionMode selects how failed expectations are handled.
type AssertionMode string

const (
	// AssertionStrict stops the scenario at the first failed expectation.
	AssertionStrict AssertionMode = "strict"
	// AssertionLogOnly logs failed expectations and keeps running.
	AssertionLogOnly AssertionMode = "log-only"
)

// Assertions records expectation outcomes for a scenario run. The zero Mode
// behaves like AssertionStrict.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger

	failures []string
}

// Failf reports a failure that aborts the scenario regardless of mode, such
// as a malformed step or an unknown order reference.
func (a *Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports a failed expectation. In log-only mode the failure is
// recorded and logged, and the scenario continues.
func (a *Assertions) Assertf(format string, args ...any) error {
	message := fmt.Sprintf(format, args...)
	a.failures = append(a.failures, message)
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("expectation failed: %s", message)
		}
		return nil
	}
	return errors.New(message)
}

// Failures returns the expectation failures recorded since the last reset.
func (a *Assertions) Failures() []string {
	if len(a.failures) == 0 {
		return nil
	}
	return append([]string(nil), a.failures...)
}

func (a *Assertions) reset() {
	a.failures = nil
}
