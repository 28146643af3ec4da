package webhook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marcelsud/webhook-hub/queue"
	queuememory "github.com/marcelsud/webhook-hub/queue/memory"
	"github.com/marcelsud/webhook-hub/store/memory"
	"github.com/marcelsud/webhook-hub/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProcessor fails its first failN calls, then succeeds
type flakyProcessor struct {
	mu    sync.Mutex
	failN int
	calls int
}

func (p *flakyProcessor) Process(ctx context.Context, event webhook.Event) (webhook.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failN {
		return webhook.ProcessResult{}, errors.New("downstream unavailable")
	}
	return webhook.ProcessResult{Success: true, ProcessedRecords: 1}, nil
}

func TestPipeline_DeadLetterReplay(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))

	repo := memory.NewStore()
	require.NoError(t, repo.SaveConfig(ctx, githubConfig))

	qstore := queuememory.NewStore()
	manager := queue.NewManager(qstore, queue.WithClock(clock))
	proc := &flakyProcessor{failN: 4}
	service := webhook.NewService(repo, repo, manager, proc, webhook.WithClock(clock))

	res, err := service.Receive(ctx, githubRequest("push", `{"ref":"refs/heads/main"}`, githubSecret))
	require.NoError(t, err)
	require.True(t, res.Success)
	id := res.EventID

	// One first attempt plus MaxRetries retries, all failing
	for i := 0; i < 4; i++ {
		processed, err := manager.ProcessNext(ctx, service)
		require.NoError(t, err)
		require.True(t, processed, "attempt %d", i+1)
		clock.Advance(5 * time.Minute)
	}

	stats, err := qstore.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DeadLetter)
	assert.Equal(t, int64(0), stats.Pending)

	event, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, webhook.Failed, event.Status())
	require.Len(t, repo.DeadLetterRecords(), 1)

	n, err := manager.Replay(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	processed, err := manager.ProcessNext(ctx, service)
	require.NoError(t, err)
	require.True(t, processed)

	assert.Equal(t, 5, proc.calls)
	event, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, webhook.Succeeded, event.Status())
	assert.Equal(t, 0, event.RetryCount)

	stats, err = qstore.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.DeadLetter)
	assert.Equal(t, int64(1), stats.Completed)
}
