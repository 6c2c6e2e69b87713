package workflow

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var inside, maxInside int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("recon:2024-01-01")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most 1 holder at a time, saw %d", maxInside)
	}
	if len(k.locks) != 0 {
		t.Fatalf("expected released keys to be dropped, have %d", len(k.locks))
	}
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.lock("recon:2024-01-01")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.lock("recon:2024-01-02")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("lock on a different date blocked")
	}
}

func TestScopeLockName_IsPerDate(t *testing.T) {
	a := scopeLockName(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC))
	b := scopeLockName(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if a != b || a != "recon:2024-01-01" {
		t.Fatalf("unexpected lock names %q %q", a, b)
	}
}
