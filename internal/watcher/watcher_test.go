package watcher_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/verifyhub/internal/bouncify"
	"github.com/ignite/verifyhub/internal/domain"
	"github.com/ignite/verifyhub/internal/service/verification"
	"github.com/ignite/verifyhub/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pollProvider serves a scripted sequence of job statuses and
// implements the rest of the provider interface as no-ops.
type pollProvider struct {
	mu       sync.Mutex
	statuses []*bouncify.JobStatusResult
	err      error
	idx      int
	calls    int
}

func (p *pollProvider) JobStatus(context.Context, string) (*bouncify.JobStatusResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	st := p.statuses[p.idx]
	if p.idx < len(p.statuses)-1 {
		p.idx++
	}
	return st, nil
}

func (p *pollProvider) pollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *pollProvider) VerifyEmail(context.Context, string) (*bouncify.VerifyResult, error) {
	return nil, nil
}
func (p *pollProvider) SubmitBulk(context.Context, []byte, string, bool) (*bouncify.BulkSubmitResult, error) {
	return nil, nil
}
func (p *pollProvider) StartJob(context.Context, string) (string, error) { return "", nil }
func (p *pollProvider) DeleteJob(context.Context, string) error          { return nil }
func (p *pollProvider) DownloadResults(context.Context, string, []string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("email,result\n")), "results.csv", nil
}

type memLogs struct {
	mu   sync.Mutex
	logs map[string]*domain.VerificationLog
}

func newMemLogs() *memLogs { return &memLogs{logs: make(map[string]*domain.VerificationLog)} }

func (m *memLogs) get(jobID string) *domain.VerificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.logs[jobID]; ok {
		cp := *entry
		return &cp
	}
	return nil
}

func (m *memLogs) Create(_ context.Context, entry *domain.VerificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.logs[cp.JobID] = &cp
	return nil
}

func (m *memLogs) GetByJobID(_ context.Context, jobID string) (*domain.VerificationLog, error) {
	entry := m.get(jobID)
	if entry == nil {
		return nil, verification.ErrNotFound
	}
	return entry, nil
}

func (m *memLogs) ListByUser(context.Context, string) ([]domain.VerificationLog, error) {
	return nil, nil
}

func (m *memLogs) UpdateStatus(_ context.Context, jobID string, status domain.LogStatus, message string) (*domain.VerificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.logs[jobID]
	if !ok {
		return nil, verification.ErrNotFound
	}
	if !entry.Status.CanTransition(status) {
		return nil, verification.ErrInvalidTransition
	}
	entry.Status = status
	entry.Message = message
	cp := *entry
	return &cp, nil
}

func (m *memLogs) ApplyResults(_ context.Context, jobID string, counts domain.ResultCounts, message string) (*domain.VerificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.logs[jobID]
	if !ok {
		return nil, verification.ErrNotFound
	}
	entry.Status = domain.LogVerifiedList
	entry.Message = message
	entry.TotalEmails = counts.Total
	cp := *entry
	return &cp, nil
}

func (m *memLogs) DeleteByJobID(_ context.Context, jobID string) (*domain.VerificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.logs[jobID]
	if !ok {
		return nil, verification.ErrNotFound
	}
	delete(m.logs, jobID)
	return entry, nil
}

type noopLedger struct{}

func (noopLedger) ConsumeAndLog(context.Context, *domain.VerificationLog) error { return nil }

func newWatcher(p *pollProvider, logs *memLogs) *watcher.Watcher {
	svc := verification.NewService(p, logs, noopLedger{}, nil, verification.DefaultLimits())
	return watcher.New(svc, 20*time.Millisecond, time.Hour)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcherCompletesJob(t *testing.T) {
	logs := newMemLogs()
	logs.Create(context.Background(), &domain.VerificationLog{
		JobID: "job-1", Status: domain.LogProcessing, SourceType: domain.SourceCSV,
	})
	provider := &pollProvider{statuses: []*bouncify.JobStatusResult{
		{JobID: "job-1", Status: bouncify.JobStatusVerifying, Total: 10, Verified: 4},
		{JobID: "job-1", Status: bouncify.JobStatusCompleted, Total: 10, Verified: 10},
	}}
	w := newWatcher(provider, logs)
	defer w.StopAll()

	require.True(t, w.Watch(context.Background(), "job-1"))
	waitFor(t, func() bool {
		entry := logs.get("job-1")
		return entry != nil && entry.Status == domain.LogVerifiedList
	})
	waitFor(t, func() bool { return !w.Watching("job-1") })
}

func TestWatcherIsSingletonPerJob(t *testing.T) {
	logs := newMemLogs()
	logs.Create(context.Background(), &domain.VerificationLog{
		JobID: "job-1", Status: domain.LogProcessing, SourceType: domain.SourceCSV,
	})
	provider := &pollProvider{statuses: []*bouncify.JobStatusResult{
		{JobID: "job-1", Status: bouncify.JobStatusVerifying, Total: 10, Verified: 1},
	}}
	w := newWatcher(provider, logs)
	defer w.StopAll()

	assert.True(t, w.Watch(context.Background(), "job-1"))
	assert.False(t, w.Watch(context.Background(), "job-1"), "second watch for the same job must be refused")
	assert.True(t, w.Watch(context.Background(), "job-2"), "other jobs get their own watcher")
}

func TestWatcherMarksFailedOnRepeatedErrors(t *testing.T) {
	logs := newMemLogs()
	logs.Create(context.Background(), &domain.VerificationLog{
		JobID: "job-1", Status: domain.LogProcessing, SourceType: domain.SourceCSV,
	})
	provider := &pollProvider{err: assert.AnError}
	w := newWatcher(provider, logs)
	defer w.StopAll()

	require.True(t, w.Watch(context.Background(), "job-1"))
	waitFor(t, func() bool {
		entry := logs.get("job-1")
		return entry != nil && entry.Status == domain.LogFailed
	})
	assert.GreaterOrEqual(t, provider.pollCount(), 5)
}

func TestWatcherStopCancelsLoop(t *testing.T) {
	logs := newMemLogs()
	logs.Create(context.Background(), &domain.VerificationLog{
		JobID: "job-1", Status: domain.LogProcessing, SourceType: domain.SourceCSV,
	})
	provider := &pollProvider{statuses: []*bouncify.JobStatusResult{
		{JobID: "job-1", Status: bouncify.JobStatusVerifying, Total: 10, Verified: 1},
	}}
	w := newWatcher(provider, logs)

	require.True(t, w.Watch(context.Background(), "job-1"))
	w.Stop("job-1")
	waitFor(t, func() bool { return !w.Watching("job-1") })

	// The log stays PROCESSING; stopping the watcher is not a failure.
	entry := logs.get("job-1")
	assert.Equal(t, domain.LogProcessing, entry.Status)
}

func TestWatcherFailsJobPastMaxAge(t *testing.T) {
	logs := newMemLogs()
	logs.Create(context.Background(), &domain.VerificationLog{
		JobID: "job-1", Status: domain.LogProcessing, SourceType: domain.SourceCSV,
	})
	provider := &pollProvider{statuses: []*bouncify.JobStatusResult{
		{JobID: "job-1", Status: bouncify.JobStatusVerifying, Total: 10, Verified: 1},
	}}
	svc := verification.NewService(provider, logs, noopLedger{}, nil, verification.DefaultLimits())
	w := watcher.New(svc, 20*time.Millisecond, 50*time.Millisecond)
	defer w.StopAll()

	require.True(t, w.Watch(context.Background(), "job-1"))
	waitFor(t, func() bool {
		entry := logs.get("job-1")
		return entry != nil && entry.Status == domain.LogFailed
	})
	assert.Equal(t, "Verification timed out", logs.get("job-1").Message)
}
