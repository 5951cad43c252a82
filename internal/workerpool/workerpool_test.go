package workerpool_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openscap-probes/seap/internal/workerpool"
)

func TestDispatchReturnsImmediatelyWhileJobBlocks(t *testing.T) {
	p := workerpool.New()
	release := make(chan struct{})
	started := make(chan struct{})

	done := make(chan struct{})
	go func() {
		p.Dispatch(func() {
			close(started)
			<-release
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the job")
	}

	<-started
	close(release)
	p.Wait()
}

func TestWaitBlocksUntilAllJobsComplete(t *testing.T) {
	p := workerpool.New()
	var completed int32

	const n = 10
	for i := 0; i < n; i++ {
		p.Dispatch(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&completed, 1)
		})
	}
	p.Wait()
	assert.EqualValues(t, n, completed)
	assert.Equal(t, 0, p.Running())
}
