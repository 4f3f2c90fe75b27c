package audit

import (
	"container/list"
	"sort"
	"sync"
	"time"
)

// AttemptLog holds the most recent login attempts in insertion order.
type AttemptLog struct {
	mu       sync.RWMutex
	attempts *list.List // oldest at Front
	capacity int
}

// NewAttemptLog creates an AttemptLog retaining at most capacity attempts.
func NewAttemptLog(capacity int) *AttemptLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &AttemptLog{
		attempts: list.New(),
		capacity: capacity,
	}
}

// Record appends an attempt. When the log grows past capacity the oldest
// attempt is evicted.
func (l *AttemptLog) Record(attempt LoginAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts.PushBack(attempt)

	if l.attempts.Len() > l.capacity {
		l.attempts.Remove(l.attempts.Front())
	}
}

// Recent returns up to limit attempts, newest timestamp first. Attempts with
// equal timestamps are ordered most recently inserted first.
func (l *AttemptLog) Recent(limit int) []LoginAttempt {
	l.mu.RLock()
	result := make([]LoginAttempt, 0, l.attempts.Len())
	// Walk newest to oldest so the stable sort keeps later inserts first on ties.
	for elem := l.attempts.Back(); elem != nil; elem = elem.Prev() {
		result = append(result, elem.Value.(LoginAttempt))
	}
	l.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit < 0 {
		limit = 0
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// CountOn counts attempts whose timestamp falls on the UTC calendar date of
// day and that satisfy match. A nil match counts every attempt on that date.
func (l *AttemptLog) CountOn(day time.Time, match func(LoginAttempt) bool) int {
	y, m, d := day.UTC().Date()

	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for elem := l.attempts.Front(); elem != nil; elem = elem.Next() {
		attempt := elem.Value.(LoginAttempt)
		ay, am, ad := attempt.Timestamp.UTC().Date()
		if ay != y || am != m || ad != d {
			continue
		}
		if match == nil || match(attempt) {
			count++
		}
	}
	return count
}

// Len returns the number of attempts in the log.
func (l *AttemptLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attempts.Len()
}

// Capacity returns the maximum number of retained attempts.
func (l *AttemptLog) Capacity() int {
	return l.capacity
}

// Succeeded matches successful attempts.
func Succeeded(a LoginAttempt) bool { return a.Success }

// Failed matches failed attempts.
func Failed(a LoginAttempt) bool { return !a.Success }
