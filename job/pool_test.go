package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"automark/models"
	"automark/watermark"
)

func TestPoolNeverExceedsSize(t *testing.T) {
	var running, peak atomic.Int32
	var done sync.WaitGroup

	pool := NewPool(3, func(ctx context.Context, id string) error {
		defer done.Done()
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	pool.Start(context.Background())

	for i := 0; i < 12; i++ {
		done.Add(1)
		if err := pool.Submit("job"); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	done.Wait()

	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency %d exceeds pool size", p)
	}
	if p := peak.Load(); p < 2 {
		t.Errorf("peak concurrency %d, jobs did not run in parallel", p)
	}
	if err := pool.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestPoolRunsInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var done sync.WaitGroup

	pool := NewPool(1, func(ctx context.Context, id string) error {
		defer done.Done()
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		return nil
	})

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		done.Add(1)
		pool.Submit(id)
	}
	if pool.Pending() != len(ids) {
		t.Errorf("Pending = %d before start", pool.Pending())
	}
	pool.Start(context.Background())
	done.Wait()

	for i, id := range ids {
		if order[i] != id {
			t.Fatalf("order = %v", order)
		}
	}
	pool.Stop(context.Background())
}

func TestPoolSurvivesHandlerPanic(t *testing.T) {
	var done sync.WaitGroup
	pool := NewPool(1, func(ctx context.Context, id string) error {
		defer done.Done()
		if id == "bad" {
			panic("boom")
		}
		return errors.New("ordinary failure")
	})
	pool.Start(context.Background())

	done.Add(2)
	pool.Submit("bad")
	pool.Submit("good")
	done.Wait()

	if pool.Active() != 0 {
		t.Errorf("Active = %d after jobs finished", pool.Active())
	}
	pool.Stop(context.Background())
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(2, func(ctx context.Context, id string) error { return nil })
	pool.Start(context.Background())
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := pool.Submit("late"); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit after Stop = %v", err)
	}
}

func TestStopCancelsRunningJobsOnDeadline(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	pool := NewPool(1, func(ctx context.Context, id string) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	pool.Start(context.Background())
	pool.Submit("long")
	pool.Submit("never")
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop = %v", err)
	}
	if !cancelled.Load() {
		t.Error("running job was not cancelled")
	}
	if pool.Pending() != 0 {
		t.Errorf("queued jobs not abandoned: %d", pool.Pending())
	}
}

// gateExec holds every render until release is closed
type gateExec struct {
	entered chan string
	release chan struct{}
}

func (e *gateExec) Execute(ctx context.Context, cmd watermark.Command, onRendered func()) (string, error) {
	e.entered <- cmd.OutputPath
	<-e.release
	onRendered()
	return cmd.OutputPath, nil
}

func TestPoolKeepsExcessJobsQueued(t *testing.T) {
	store := NewStore()
	exec := &gateExec{entered: make(chan string, 5), release: make(chan struct{})}
	proc := &Processor{Store: store, Synth: &stubSynth{}, Exec: exec, OutputDir: t.TempDir()}
	pool := NewPool(2, proc.Process)
	pool.Start(context.Background())

	var ids []string
	for i := 0; i < 5; i++ {
		job := newJob(t, store)
		ids = append(ids, job.ID)
		if err := pool.Submit(job.ID); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	<-exec.entered
	<-exec.entered

	select {
	case <-exec.entered:
		t.Fatal("third job started while two were running")
	case <-time.After(50 * time.Millisecond):
	}
	if n := store.Count(models.StatusProcessing); n != 2 {
		t.Errorf("processing = %d, want 2", n)
	}
	if n := store.Count(models.StatusQueued); n != 3 {
		t.Errorf("queued = %d, want 3", n)
	}

	close(exec.release)
	deadline := time.Now().Add(2 * time.Second)
	for store.Count(models.StatusCompleted) < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	for _, id := range ids {
		if got, _ := store.Get(id); got.Status != models.StatusCompleted {
			t.Errorf("job %s ended %s", id, got.Status)
		}
	}
	if err := pool.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
