package model

// Outcome is the terminal classification of processing one target.
type Outcome string

const (
	OutcomeSucceeded      Outcome = "succeeded"              // member added or message delivered
	OutcomeAlreadyPresent Outcome = "already-present"        // duplicate, cheap no-op
	OutcomeBlocked        Outcome = "blocked"                // target blocked the bot or is privacy-restricted
	OutcomeNotFound       Outcome = "not-found"              // target id invalid or account deactivated
	OutcomeRateAbandoned  Outcome = "rate-limited-abandoned" // rate window wait exceeded the configured cap
	OutcomeTransient      Outcome = "transient-failure"      // retries exhausted on a retryable error
	OutcomeUnknown        Outcome = "unknown-failure"        // retries exhausted on an unclassified error
)

type OutcomeClass int

const (
	OutcomeClassSucceeded OutcomeClass = iota
	OutcomeClassSkipped
	OutcomeClassFailed
)

// Class buckets an outcome into the job counter it increments.
func (o Outcome) Class() OutcomeClass {
	switch o {
	case OutcomeSucceeded:
		return OutcomeClassSucceeded
	case OutcomeAlreadyPresent:
		return OutcomeClassSkipped
	default:
		return OutcomeClassFailed
	}
}

// Fast reports whether the outcome came from a call that returned promptly,
// i.e. without a throttle or backoff sleep in front of it. The fixed
// inter-item delay applies only after fast outcomes; a throttled wait
// already substitutes for it.
func (o Outcome) Fast() bool {
	switch o {
	case OutcomeSucceeded, OutcomeAlreadyPresent, OutcomeBlocked, OutcomeNotFound:
		return true
	}
	return false
}
