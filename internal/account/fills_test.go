package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

type recordingJournal struct {
	mu    sync.Mutex
	fills []domain.Execution
}

func (j *recordingJournal) InsertFill(_ context.Context, fill domain.Execution) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fills = append(j.fills, fill)
	return nil
}

func (j *recordingJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.fills)
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(_ context.Context, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func fill(id string) domain.Execution {
	return domain.Execution{
		ExecID:  id,
		OrderID: "ord-1",
		Symbol:  "BTCUSDT",
		Side:    domain.OrderSideBuy,
		Qty:     0.01,
		Price:   50000,
		At:      time.Now(),
	}
}

func TestFillProcessorJournalsAndNotifies(t *testing.T) {
	state := NewState("BTCUSDT", testLogger())
	journal := &recordingJournal{}
	notifier := &recordingNotifier{}
	p := NewFillProcessor(state, journal, notifier, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Submit(fill("e-1"))
	p.Submit(fill("e-2"))

	deadline := time.After(2 * time.Second)
	for journal.count() < 2 || notifier.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("fills not processed: journal=%d notify=%d", journal.count(), notifier.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err got %v", err)
	}

	if got := state.FillCount(); got != 2 {
		t.Fatalf("state fill count got %d want 2", got)
	}
	processed, dropped := p.Stats()
	if processed != 2 || dropped != 0 {
		t.Fatalf("stats got processed=%d dropped=%d", processed, dropped)
	}
}

func TestFillProcessorNilSinksAreSkipped(t *testing.T) {
	state := NewState("BTCUSDT", testLogger())
	p := NewFillProcessor(state, nil, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Submit(fill("e-1"))

	deadline := time.After(2 * time.Second)
	for state.FillCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("fill not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestFillProcessorDropsWhenQueueFull(t *testing.T) {
	state := NewState("BTCUSDT", testLogger())
	// Not running: the queue fills up and overflow must not block Submit.
	p := NewFillProcessor(state, nil, nil, testLogger())

	for i := 0; i < fillQueueCap+5; i++ {
		p.Submit(fill("e"))
	}

	_, dropped := p.Stats()
	if dropped != 5 {
		t.Fatalf("dropped got %d want 5", dropped)
	}
}
