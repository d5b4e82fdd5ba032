package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingService struct {
	name   string
	starts atomic.Int32
	fail   bool
}

func (s *countingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	if s.fail {
		return errors.New("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewTree_Defaults(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{})
	assert.Equal(t, DefaultTreeConfig(), tree.config)

	tree = NewTree(nil, TreeConfig{FailureBackoff: time.Second})
	assert.Equal(t, time.Second, tree.config.FailureBackoff)
	assert.Equal(t, 5.0, tree.config.FailureThreshold)
}

func TestTree_Lifecycle(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{
		FailureBackoff:  50 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	storage := &countingService{name: "storage"}
	ingest := &countingService{name: "ingest"}
	ops := &countingService{name: "ops"}
	tree.AddStorage(storage)
	tree.AddIngest(ingest)
	tree.AddOps(ops)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool {
		return storage.starts.Load() == 1 && ingest.starts.Load() == 1 && ops.starts.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop")
	}

	report, err := tree.UnstoppedServiceReport()
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestTree_RestartsFailingService(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 100,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := &countingService{name: "flaky", fail: true}
	steady := &countingService{name: "steady"}
	tree.AddIngest(flaky)
	tree.AddStorage(steady)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool { return flaky.starts.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), steady.starts.Load())

	cancel()
	<-errCh
}
