package systems

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	Name string
	/** @brief Invoked on a worker. Required. */
	OnStart func() (interface{}, error)
	/** @brief Invoked on the worker with the result when OnStart succeeds. Optional. */
	OnComplete func(result interface{})
	/** @brief Invoked on the worker when OnStart fails. Optional. */
	OnFailure func(err error)
	/** @brief Invoked last, whatever the outcome. Optional. */
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	if job.OnCompletionCallback != nil {
		defer job.OnCompletionCallback()
	}
	result, err := job.OnStart()
	if err != nil {
		core.LogError("job %s failed: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete(result)
	}
}

/**
 * @brief Shuts the job system down after the queued jobs have run.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
	return nil
}

// AddWorkNonBlocking queues the job from a new goroutine and returns immediately.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go js.Submit(jt)
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}

// RunAll submits the jobs and waits until every one has finished. The
// returned error combines the failures.
func (js *JobSystem) RunAll(jobs []JobTask) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	wg.Add(len(jobs))
	for _, job := range jobs {
		job := job
		onFailure := job.OnFailure
		job.OnFailure = func(err error) {
			mu.Lock()
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "job %s", job.Name))
			mu.Unlock()
			if onFailure != nil {
				onFailure(err)
			}
		}
		done := job.OnCompletionCallback
		job.OnCompletionCallback = func() {
			if done != nil {
				done()
			}
			wg.Done()
		}
		js.Submit(job)
	}
	wg.Wait()
	return errs
}
