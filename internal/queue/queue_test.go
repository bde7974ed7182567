package queue

import (
	"errors"
	"sync/atomic"
	"testing"

	"channah-support-chat/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestJobsReportErrors(t *testing.T) {
	rqm := NewRequestQueueManager(4, 2, logger.Nop())
	defer rqm.Shutdown()

	boom := errors.New("boom")
	errc := make(chan error, 1)
	rqm.EnqueueJob(Job{Fn: func() error { return boom }, Errc: errc})
	require.ErrorIs(t, <-errc, boom)
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	rqm := NewRequestQueueManager(1, 1, logger.Nop())
	defer rqm.Shutdown()

	errc := make(chan error, 1)
	rqm.EnqueueJob(Job{Fn: func() error { panic("bad handler") }, Errc: errc})
	require.Error(t, <-errc)

	rqm.EnqueueJob(Job{Fn: func() error { return nil }, Errc: errc})
	require.NoError(t, <-errc)
}

func TestShutdownDrainsQueue(t *testing.T) {
	rqm := NewRequestQueueManager(10, 3, logger.Nop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		rqm.EnqueueJob(Job{Fn: func() error { ran.Add(1); return nil }})
	}
	rqm.Shutdown()
	rqm.Shutdown()

	require.Equal(t, int32(10), ran.Load())
}
