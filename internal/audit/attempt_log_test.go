package audit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func attemptAt(email string, offset time.Duration, success bool) LoginAttempt {
	return LoginAttempt{
		Email:     email,
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
		Success:   success,
		Timestamp: baseTime.Add(offset),
	}
}

func TestAttemptLog_EvictsExactlyOldest(t *testing.T) {
	log := NewAttemptLog(1000)

	for i := 0; i < 1000; i++ {
		log.Record(attemptAt(fmt.Sprintf("user%d@x.com", i), time.Duration(i)*time.Second, true))
	}
	if log.Len() != 1000 {
		t.Fatalf("expected 1000 attempts, got %d", log.Len())
	}

	log.Record(attemptAt("newest@x.com", 2000*time.Second, false))
	if log.Len() != 1000 {
		t.Fatalf("expected 1000 attempts after eviction, got %d", log.Len())
	}

	all := log.Recent(2000)
	for _, a := range all {
		if a.Email == "user0@x.com" {
			t.Fatal("oldest attempt should have been evicted")
		}
	}
	if all[0].Email != "newest@x.com" {
		t.Errorf("expected newest attempt first, got %s", all[0].Email)
	}
	if all[len(all)-1].Email != "user1@x.com" {
		t.Errorf("expected user1 to be the oldest retained, got %s", all[len(all)-1].Email)
	}
}

func TestAttemptLog_DefaultCapacity(t *testing.T) {
	if got := NewAttemptLog(0).Capacity(); got != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, got)
	}
}

func TestAttemptLog_RecentTieBreaksByInsertionOrder(t *testing.T) {
	log := NewAttemptLog(10)
	log.Record(attemptAt("first@x.com", 0, true))
	log.Record(attemptAt("second@x.com", 0, true))
	log.Record(attemptAt("older@x.com", -time.Minute, true))

	recent := log.Recent(3)
	want := []string{"second@x.com", "first@x.com", "older@x.com"}
	for i, email := range want {
		if recent[i].Email != email {
			t.Fatalf("position %d: expected %s, got %s", i, email, recent[i].Email)
		}
	}
}

func TestAttemptLog_RecentIsNonDestructive(t *testing.T) {
	log := NewAttemptLog(10)
	for i := 0; i < 5; i++ {
		log.Record(attemptAt("a@x.com", time.Duration(i)*time.Second, i%2 == 0))
	}

	first := log.Recent(3)
	second := log.Recent(3)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 results, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("repeated read differs at %d", i)
		}
	}
	if log.Len() != 5 {
		t.Errorf("read mutated the log: len %d", log.Len())
	}
	if got := log.Recent(0); len(got) != 0 {
		t.Errorf("expected empty result for zero limit, got %d", len(got))
	}
}

func TestAttemptLog_CountOn(t *testing.T) {
	log := NewAttemptLog(10)
	log.Record(attemptAt("a@x.com", 0, true))
	log.Record(attemptAt("a@x.com", time.Hour, false))
	log.Record(attemptAt("a@x.com", 2*time.Hour, false))
	log.Record(attemptAt("a@x.com", -24*time.Hour, true))

	if got := log.CountOn(baseTime, nil); got != 3 {
		t.Errorf("expected 3 attempts today, got %d", got)
	}
	if got := log.CountOn(baseTime, Succeeded); got != 1 {
		t.Errorf("expected 1 success today, got %d", got)
	}
	if got := log.CountOn(baseTime, Failed); got != 2 {
		t.Errorf("expected 2 failures today, got %d", got)
	}
	if got := log.CountOn(baseTime.Add(-24*time.Hour), nil); got != 1 {
		t.Errorf("expected 1 attempt yesterday, got %d", got)
	}
}

func TestAttemptLog_CountOnUsesUTCDate(t *testing.T) {
	log := NewAttemptLog(10)
	// 23:30 UTC on May 1 is already May 2 in UTC+2.
	late := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	log.Record(LoginAttempt{Email: "a@x.com", Timestamp: late})

	plus2 := time.FixedZone("UTC+2", 2*60*60)
	if got := log.CountOn(time.Date(2026, 5, 2, 0, 30, 0, 0, plus2), nil); got != 1 {
		t.Errorf("expected attempt to count on UTC date May 1, got %d", got)
	}
}

func TestAttemptLog_ConcurrentRecordStaysBounded(t *testing.T) {
	log := NewAttemptLog(100)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				log.Record(attemptAt(fmt.Sprintf("w%d@x.com", w), time.Duration(i)*time.Millisecond, true))
			}
		}(w)
	}
	wg.Wait()

	if log.Len() != 100 {
		t.Errorf("expected 100 attempts, got %d", log.Len())
	}
}

// For any sequence of inserts, the log never exceeds capacity and keeps the newest entries
func TestProperty_AttemptLogBoundedFIFO(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 50).Draw(t, "capacity")
		inserts := rapid.IntRange(0, 120).Draw(t, "inserts")
		log := NewAttemptLog(capacity)

		for i := 0; i < inserts; i++ {
			log.Record(attemptAt(fmt.Sprintf("u%d@x.com", i), time.Duration(i)*time.Second, i%3 == 0))
			if log.Len() > capacity {
				t.Fatalf("length %d exceeds capacity %d", log.Len(), capacity)
			}
		}

		expected := inserts
		if expected > capacity {
			expected = capacity
		}
		all := log.Recent(inserts + 1)
		if len(all) != expected {
			t.Fatalf("expected %d attempts, got %d", expected, len(all))
		}
		for i, a := range all {
			want := fmt.Sprintf("u%d@x.com", inserts-1-i)
			if a.Email != want {
				t.Fatalf("position %d: expected %s, got %s", i, want, a.Email)
			}
		}
	})
}

// For any limit, Recent returns at most limit attempts sorted by timestamp descending
func TestProperty_RecentSortedAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		log := NewAttemptLog(100)
		offsets := rapid.SliceOfN(rapid.IntRange(-1000, 1000), 0, 60).Draw(t, "offsets")
		for i, off := range offsets {
			log.Record(attemptAt(fmt.Sprintf("u%d@x.com", i), time.Duration(off)*time.Second, true))
		}
		limit := rapid.IntRange(0, 80).Draw(t, "limit")

		recent := log.Recent(limit)
		if len(recent) > limit {
			t.Fatalf("got %d attempts for limit %d", len(recent), limit)
		}
		for i := 1; i < len(recent); i++ {
			if recent[i].Timestamp.After(recent[i-1].Timestamp) {
				t.Fatalf("attempts not sorted descending at %d", i)
			}
		}
	})
}
