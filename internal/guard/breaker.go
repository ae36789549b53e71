// Package guard provides a circuit breaker protecting the computation pipeline
// against corrupted or implausible reserve snapshots from the indexer.
package guard

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lendpool-health-ea/internal/model"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, snapshots rejected
	StateHalfOpen              // Testing if the data source has recovered
)

// CircuitBreaker implements the circuit breaker pattern over reserve snapshot
// sets. It trips on data that no healthy market produces: rates above the
// configured ceiling, cumulative indices that move backwards between
// consecutive snapshot sets, or too few reserves to aggregate against.
type CircuitBreaker struct {
	// Configuration thresholds for tripping the breaker
	thresholds Thresholds

	// Current state (Closed, Open, HalfOpen)
	state State

	// Timestamp of the last trip
	lastTrip time.Time

	// Duration before an auto-reset attempt
	resetDelay time.Duration

	// Mutex for thread safety
	mu sync.RWMutex

	// Last snapshot set that passed all checks; used for index-regression
	// comparison and as a fallback for callers
	lastGood []*model.ReserveSnapshot

	// Count of consecutive successful checks in the HalfOpen state
	successCount int

	// Number of successful checks required to close the circuit
	successThreshold int

	// Event callback for monitoring/alerting
	onTripCallback func(reason string)
}

// Thresholds defines the limits that will trip the circuit breaker
type Thresholds struct {
	// MaxAnnualRate is the RAY-scaled ceiling for any reserve rate
	MaxAnnualRate *big.Int `json:"max_annual_rate"`

	// MinReserves is the minimum reserve count a snapshot set must contain
	MinReserves int `json:"min_reserves"`

	// CheckIndexRegression compares cumulative indices against the last good
	// snapshot set; indices are monotone on-chain, so regression means a
	// reorg-confused or corrupted indexer
	CheckIndexRegression bool `json:"check_index_regression"`
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful checks needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback invoked whenever the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Check evaluates a reserve snapshot set against the thresholds.
// If the circuit is open, it rejects the set outright until the reset delay
// elapses; if the set violates a threshold, it trips the circuit and returns
// an error.
func (cb *CircuitBreaker) Check(reserves []*model.ReserveSnapshot) error {
	cb.mu.RLock()
	state := cb.state
	lastTripTime := cb.lastTrip
	cb.mu.RUnlock()

	if state == StateOpen {
		if time.Since(lastTripTime) > cb.resetDelay {
			cb.transitionToHalfOpen()
		} else {
			return errors.New("circuit breaker open: snapshot source distrusted")
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if len(reserves) == 0 {
		return errors.New("no reserves provided to circuit breaker")
	}

	if len(reserves) < cb.thresholds.MinReserves {
		reason := fmt.Sprintf("insufficient reserve count: got %d, need %d",
			len(reserves), cb.thresholds.MinReserves)
		cb.trip(reason)
		return errors.New(reason)
	}

	if cb.thresholds.MaxAnnualRate != nil {
		for _, r := range reserves {
			if r.LiquidityRate.Cmp(cb.thresholds.MaxAnnualRate) > 0 ||
				r.VariableBorrowRate.Cmp(cb.thresholds.MaxAnnualRate) > 0 {
				reason := fmt.Sprintf("reserve %s rate exceeds ceiling", r.ID)
				cb.trip(reason)
				return errors.New(reason)
			}
		}
	}

	if cb.thresholds.CheckIndexRegression && len(cb.lastGood) > 0 {
		previous := make(map[string]*model.ReserveSnapshot, len(cb.lastGood))
		for _, r := range cb.lastGood {
			previous[r.ID] = r
		}
		for _, r := range reserves {
			prev, ok := previous[r.ID]
			if !ok {
				continue
			}
			if r.LiquidityIndex.Cmp(prev.LiquidityIndex) < 0 ||
				r.VariableBorrowIndex.Cmp(prev.VariableBorrowIndex) < 0 {
				reason := fmt.Sprintf("reserve %s index regressed against last good snapshot", r.ID)
				cb.trip(reason)
				return errors.New(reason)
			}
		}
	}

	logrus.Debug("Circuit breaker checks passed")

	cb.lastGood = reserves

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: snapshot source has recovered")
		}
	}

	return nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGoodReserves returns the most recent snapshot set that passed all checks
func (cb *CircuitBreaker) LastGoodReserves() []*model.ReserveSnapshot {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if len(cb.lastGood) == 0 {
		return nil
	}

	// Copy the slice header; snapshots themselves are immutable
	lastBatch := make([]*model.ReserveSnapshot, len(cb.lastGood))
	copy(lastBatch, cb.lastGood)
	return lastBatch
}

// transitionToHalfOpen changes the circuit state to half-open for testing recovery
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing snapshot source recovery")
	}
}

// trip sets the circuit breaker to open state with the current time
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason)
	}
}
