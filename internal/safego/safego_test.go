package safego

import (
	"sync"
	"testing"
	"time"
)

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for goroutine")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	Go("run", func() {
		defer wg.Done()
		ran = true
	})
	waitOrFail(t, &wg)
	if !ran {
		t.Error("function did not run")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go("panicky", func() {
		defer wg.Done()
		panic("boom")
	})
	waitOrFail(t, &wg)
}
