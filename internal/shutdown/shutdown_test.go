package shutdown

import (
	"context"
	"testing"
	"time"
)

func TestSignalClosesDone(t *testing.T) {
	b := New(context.Background())
	select {
	case <-b.Done():
		t.Fatal("Done should not be closed before Signal")
	default:
	}

	b.Signal()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("Done should be closed after Signal")
	}
}

func TestSignalIsIdempotent(t *testing.T) {
	b := New(context.Background())
	b.Signal()
	b.Signal() // must not panic
	<-b.Done()
}

func TestMultipleSubscribersAllWake(t *testing.T) {
	b := New(context.Background())
	const n = 5
	woke := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			<-b.Done()
			woke <- i
		}(i)
	}

	b.Signal()

	for i := 0; i < n; i++ {
		select {
		case <-woke:
		case <-time.After(time.Second):
			t.Fatal("not all subscribers woke on shutdown")
		}
	}
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	b := New(parent)
	cancel()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("expected parent cancellation to propagate")
	}
}
