package ingest

import (
	"context"
	"sync"

	"github.com/nmtsys/memstore/pkg/chunk"
	"github.com/nmtsys/memstore/pkg/ids"
	"github.com/nmtsys/memstore/pkg/merkle"
	"github.com/nmtsys/memstore/pkg/model"
)

// JobStatus is one of the states spec.md §6's startIngestionJob exposes.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// Job tracks one asynchronous ingestion's state. cancelJob flips cancelled;
// the job loop checks it between chunks (spec.md §5's cancellation model),
// so a large document stops promptly rather than running to completion.
type Job struct {
	ID     string
	mu     sync.Mutex
	status JobStatus
	err    error
	neuron model.Neuron

	cancelled bool
}

// Status returns the job's current status and, if JobFailed, its error.
func (j *Job) Status() (JobStatus, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.err
}

// Neuron returns the neuron produced by a JobCompleted job (zero value
// otherwise).
func (j *Job) Neuron() model.Neuron {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.neuron
}

// Cancel requests cooperative cancellation; the running job observes this
// the next time it checks between chunks.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = true
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobFailed
	j.err = err
}

func (j *Job) complete(n model.Neuron) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobCompleted
	j.neuron = n
}

// JobManager tracks in-flight and completed ingestion jobs by id.
type JobManager struct {
	pipeline *Pipeline

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewJobManager returns a JobManager running ingestions through pipeline.
func NewJobManager(pipeline *Pipeline) *JobManager {
	return &JobManager{pipeline: pipeline, jobs: make(map[string]*Job)}
}

// StartIngestionJob launches ingestion in a background goroutine and
// returns immediately with a job id; poll Job/Status to observe progress.
func (jm *JobManager) StartIngestionJob(ctx context.Context, text string, opts Options) string {
	job := &Job{ID: ids.New(), status: JobPending}

	jm.mu.Lock()
	jm.jobs[job.ID] = job
	jm.mu.Unlock()

	go jm.run(ctx, job, text, opts)
	return job.ID
}

// Job returns the Job for id, or nil if unknown.
func (jm *JobManager) Job(id string) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.jobs[id]
}

// CancelJob requests cancellation of a running job. A no-op if id is
// unknown or the job already reached a terminal state.
func (jm *JobManager) CancelJob(id string) {
	if job := jm.Job(id); job != nil {
		job.Cancel()
	}
}

func (jm *JobManager) run(ctx context.Context, job *Job, text string, opts Options) {
	job.setStatus(JobRunning)

	data := []byte(text)
	var chunks []chunk.Chunk
	if opts.UseCDC {
		chunks = chunk.CDC(data, chunk.CDCOptions{})
	} else {
		chunks = chunk.FixedSize(data, opts.ChunkSize)
	}

	leaves := make([]merkle.Digest, len(chunks))
	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		if ctx.Err() != nil || job.isCancelled() {
			job.setStatus(JobCancelled)
			return
		}
		if err := jm.pipeline.Chunks.Put(ctx, c); err != nil {
			job.fail(err)
			return
		}
		leaves[i] = c.Hash
		hashes[i] = string(c.Hash)
	}

	if job.isCancelled() {
		job.setStatus(JobCancelled)
		return
	}

	tree := merkle.Build(leaves)
	embedding, err := jm.pipeline.Embedder.Embed(ctx, text)
	if err != nil {
		job.fail(err)
		return
	}

	input := ingestNeuronInput(text, hashes, string(tree.Root()), opts)
	input.Embedding = embedding
	n, err := jm.pipeline.Graph.CreateNeuron(ctx, input)
	if err != nil {
		job.fail(err)
		return
	}
	job.complete(n)
}
