package gemini

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the API while the breaker is open.
var ErrCircuitOpen = errors.New("gemini circuit breaker is open")

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultRecoveryTimeout  = 60 * time.Second
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker stops calls after failureThreshold consecutive failures. After
// recoveryTimeout it lets calls through again (half-open) and closes once
// successThreshold of them succeed; any half-open failure reopens it.
type breaker struct {
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	mu          sync.Mutex
	state       breakerState
	failures    int
	successes   int
	lastFailure time.Time
}

func newBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) *breaker {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if successThreshold <= 0 {
		successThreshold = defaultSuccessThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = defaultRecoveryTimeout
	}
	return &breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// allow reports whether a call may proceed. A nil breaker allows everything.
func (b *breaker) allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
			return false
		}
		b.state = stateHalfOpen
		b.successes = 0
	}
	return true
}

func (b *breaker) record(success bool) breakerState {
	if b == nil {
		return stateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case stateHalfOpen:
			b.successes++
			if b.successes >= b.successThreshold {
				b.state = stateClosed
				b.failures = 0
			}
		case stateClosed:
			b.failures = 0
		}
		return b.state
	}

	b.lastFailure = b.now()
	switch b.state {
	case stateHalfOpen:
		b.state = stateOpen
		b.successes = 0
	case stateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = stateOpen
		}
	}
	return b.state
}

func (b *breaker) current() breakerState {
	if b == nil {
		return stateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
