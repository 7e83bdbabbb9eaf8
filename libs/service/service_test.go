package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dashpay/mnsync/libs/log"
)

type testService struct {
	BaseService
	started chan struct{}
}

func (t *testService) OnStart(context.Context) error {
	if t.started != nil {
		close(t.started)
	}
	return nil
}

func (t *testService) OnStop() {}

func TestBaseServiceWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := &testService{}
	ts.BaseService = *NewBaseService(log.NewTestingLogger(t), "TestService", ts)
	err := ts.Start(ctx)
	require.NoError(t, err)

	waitFinished := make(chan struct{})
	go func() {
		ts.Wait()
		waitFinished <- struct{}{}
	}()

	go ts.Stop() //nolint:errcheck // ignore for tests

	select {
	case <-waitFinished:
		// all good
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected Wait() to finish within 100 ms.")
	}
}

func TestBaseServiceStartTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := &testService{started: make(chan struct{})}
	ts.BaseService = *NewBaseService(log.NewTestingLogger(t), "TestService", ts)

	require.NoError(t, ts.Start(ctx))
	<-ts.started
	require.True(t, ts.IsRunning())

	require.ErrorIs(t, ts.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, ts.Stop())
	require.False(t, ts.IsRunning())
	require.ErrorIs(t, ts.Stop(), ErrAlreadyStopped)
}

func TestBaseServiceStopWithoutStart(t *testing.T) {
	ts := &testService{}
	ts.BaseService = *NewBaseService(log.NewTestingLogger(t), "TestService", ts)
	require.ErrorIs(t, ts.Stop(), ErrNotStarted)
}
