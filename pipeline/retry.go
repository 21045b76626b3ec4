package pipeline

import (
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Call-site retry parameters for transient service blips. Longer
// outages are the retry queue's job; these just smooth over one-off
// failures within a cycle.
const (
	callRetryBaseDelay = 500 * time.Millisecond
	callRetryMaxDelay  = 5 * time.Second
	callMaxRetries     = 2

	// callTimeout bounds one external call including its retries.
	callTimeout = 30 * time.Second
)

// newCallExecutor builds a failsafe executor with exponential backoff
// for one external call type.
func newCallExecutor[T any]() failsafe.Executor[T] {
	retry := retrypolicy.NewBuilder[T]().
		WithBackoff(callRetryBaseDelay, callRetryMaxDelay).
		WithMaxRetries(callMaxRetries).
		WithJitterFactor(0.1).
		Build()
	return failsafe.With(retry)
}
