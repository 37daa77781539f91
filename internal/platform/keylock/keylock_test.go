package keylock

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(t *testing.T) {
	kl := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock("branch-1:2026-03-02")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected 100 serialized increments, got %d", counter)
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	kl := New()

	unlockA := kl.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := kl.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestRLockAllowsConcurrentReaders(t *testing.T) {
	kl := New()

	r1 := kl.RLock("k")
	r2 := kl.RLock("k")
	r1()
	r2()

	// Writer can proceed after readers release.
	unlock := kl.Lock("k")
	unlock()
}
