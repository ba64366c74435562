package loop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunsInOrder(t *testing.T) {
	l := New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := l.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post() error: %v", err)
		}
	}
	if err := l.Call(ctx, func() {}); err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v, want 0..4", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("ran %d tasks, want 5", len(got))
	}
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	l := New(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Call(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if !ran {
		t.Fatal("loop stopped after a panic")
	}
}

func TestPostAfterStop(t *testing.T) {
	l := New(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if err := l.Post(func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Post() error = %v, want ErrStopped", err)
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Call() error = %v, want ErrStopped", err)
	}
}
