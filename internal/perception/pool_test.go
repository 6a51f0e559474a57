package perception

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Camlink/internal/domain"
)

func TestPoolInlineRunsOnCaller(t *testing.T) {
	p := NewPool(0, 1)
	ran := 0
	for i := 0; i < 3; i++ {
		if err := p.Submit(context.Background(), "S1", func(context.Context) { ran++ }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if ran != 3 {
		t.Fatalf("ran = %d, want 3", ran)
	}
	p.Close()
	if err := p.Submit(context.Background(), "S1", func(context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Submit after Close err = %v, want ErrPoolClosed", err)
	}
}

func TestPoolPreservesPerSessionOrder(t *testing.T) {
	p := NewPool(4, 2)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	var mu sync.Mutex
	got := make(map[domain.SessionID][]int)
	var wg sync.WaitGroup
	sessions := []domain.SessionID{"A", "B", "C"}
	for _, sid := range sessions {
		wg.Add(1)
		go func(sid domain.SessionID) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				err := p.Submit(context.Background(), sid, func(context.Context) {
					mu.Lock()
					got[sid] = append(got[sid], i)
					mu.Unlock()
				})
				if err != nil {
					t.Errorf("Submit(%s, %d): %v", sid, i, err)
					return
				}
			}
		}(sid)
	}
	wg.Wait()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, sid := range sessions {
		seq := got[sid]
		if len(seq) != 50 {
			t.Fatalf("session %s ran %d jobs, want 50", sid, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("session %s out of order at %d: %v", sid, i, seq)
			}
		}
	}
}

func TestPoolOneJobInFlightPerSession(t *testing.T) {
	p := NewPool(4, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), "S1", func(context.Context) {
			defer wg.Done()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	if maxActive != 1 {
		t.Fatalf("max concurrent jobs for one session = %d, want 1", maxActive)
	}
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	// Never started: the lane fills up and the next Submit must block.
	p := NewPool(1, 1)
	if err := p.Submit(context.Background(), "S1", func(context.Context) {}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Submit(ctx, "S1", func(context.Context) {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("blocked Submit err = %v, want DeadlineExceeded", err)
	}

	// Other sessions have their own lanes.
	if err := p.Submit(context.Background(), "S2", func(context.Context) {}); err != nil {
		t.Fatalf("Submit on another lane: %v", err)
	}
	p.Close()
	if err := p.Submit(context.Background(), "S3", func(context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Submit after Close err = %v, want ErrPoolClosed", err)
	}
}

func TestPoolSurvivesPanickingJob(t *testing.T) {
	p := NewPool(1, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	ran := make(chan struct{})
	if err := p.Submit(context.Background(), "S1", func(context.Context) { panic("bad frame") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Submit(context.Background(), "S1", func(context.Context) { close(ran) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("job after panic never ran")
	}
}
