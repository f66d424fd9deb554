package systems

import (
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunAll(t *testing.T) {
	js, err := NewJobSystem(4, 0)
	require.NoError(t, err)
	defer js.Shutdown()

	var completed, failed, finished atomic.Int32
	jobs := make([]JobTask, 10)
	for i := range jobs {
		i := i
		jobs[i] = JobTask{
			Name: "job",
			OnStart: func() (interface{}, error) {
				if i%5 == 0 {
					return nil, errors.Newf("job %d broke", i)
				}
				return i, nil
			},
			OnComplete:           func(interface{}) { completed.Add(1) },
			OnFailure:            func(error) { failed.Add(1) },
			OnCompletionCallback: func() { finished.Add(1) },
		}
	}
	err = js.RunAll(jobs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job 0 broke")
	assert.Equal(t, int32(8), completed.Load())
	assert.Equal(t, int32(2), failed.Load())
	assert.Equal(t, int32(10), finished.Load())

	assert.NoError(t, js.RunAll(nil))
}

func TestJobSystemShutdownDrainsQueue(t *testing.T) {
	js, err := NewJobSystem(1, 8)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 8; i++ {
		js.Submit(JobTask{OnStart: func() (interface{}, error) {
			ran.Add(1)
			return nil, nil
		}})
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, int32(8), ran.Load())
	require.NoError(t, js.Shutdown())
}
