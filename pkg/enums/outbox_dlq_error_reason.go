package enums

// OutboxDLQErrorReason records why the publisher gave up on an outbox event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts means publishing kept failing until the attempt budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable means the broker rejected the message outright.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnroutable means no topic or payload type is registered for the event.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable:
		return true
	}
	return false
}

// Replayable reports whether requeueing the event could succeed without a code change.
func (r OutboxDLQErrorReason) Replayable() bool {
	return r == OutboxDLQReasonMaxAttempts
}
