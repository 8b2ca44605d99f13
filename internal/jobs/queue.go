package jobs

import (
	"fmt"
	"log/slog"
	"sync"
)

// workBuffer bounds how many submitted jobs may wait for the worker.
const workBuffer = 100

// Queue tracks every submitted OCR job and hands them to the single
// pipeline worker in submission order. One worker is deliberate: the
// grounded pass reuses a fixed-name temp directory next to the image,
// so overlapping runs would clobber each other's results.
//
// Watchers registered through Subscribe receive the fine-grained
// progress a job emits while the pipeline works through its blocks.
type Queue struct {
	mu   sync.RWMutex
	byID map[string]*Job
	work chan *Job

	watchMu  sync.RWMutex
	watchers map[string][]chan ProgressUpdate
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		byID:     make(map[string]*Job),
		work:     make(chan *Job, workBuffer),
		watchers: make(map[string][]chan ProgressUpdate),
	}
}

// Submit registers the job and queues it for the worker. Fails when the
// ID is already known or the work buffer is full.
func (q *Queue) Submit(job *Job) error {
	q.mu.Lock()
	if _, dup := q.byID[job.ID]; dup {
		q.mu.Unlock()
		return fmt.Errorf("job %s already exists", job.ID)
	}
	q.byID[job.ID] = job
	q.mu.Unlock()

	go q.dispatch(job)

	select {
	case q.work <- job:
	default:
		return fmt.Errorf("job queue is full")
	}

	slog.Info("job submitted", "job_id", job.ID, "image", job.Image, "profile", job.Profile)
	return nil
}

// Get returns a job by ID.
func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.byID[id]
	return job, ok
}

// List returns all known jobs in no particular order.
func (q *Queue) List() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	all := make([]*Job, 0, len(q.byID))
	for _, job := range q.byID {
		all = append(all, job)
	}
	return all
}

// Pending is the worker's intake channel.
func (q *Queue) Pending() <-chan *Job {
	return q.work
}

// Cancel cancels a job by ID.
func (q *Queue) Cancel(id string) error {
	job, ok := q.Get(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}

	job.Cancel()
	slog.Info("job cancelled", "job_id", id)
	return nil
}

// Subscribe registers a watcher for one job's progress updates. The
// returned channel is closed by Unsubscribe or Remove.
func (q *Queue) Subscribe(jobID string) chan ProgressUpdate {
	q.watchMu.Lock()
	defer q.watchMu.Unlock()

	ch := make(chan ProgressUpdate, 50)
	q.watchers[jobID] = append(q.watchers[jobID], ch)
	return ch
}

// Unsubscribe drops a watcher and closes its channel. Unknown channels
// are ignored, so unsubscribing after Remove is safe.
func (q *Queue) Unsubscribe(jobID string, ch chan ProgressUpdate) {
	q.watchMu.Lock()
	defer q.watchMu.Unlock()

	watching := q.watchers[jobID]
	for i, w := range watching {
		if w == ch {
			q.watchers[jobID] = append(watching[:i], watching[i+1:]...)
			close(ch)
			return
		}
	}
}

// dispatch pumps one job's progress channel out to its watchers. A full
// watcher channel drops the update rather than blocking the pipeline.
func (q *Queue) dispatch(job *Job) {
	for update := range job.ProgressChan() {
		q.watchMu.RLock()
		for _, ch := range q.watchers[job.ID] {
			select {
			case ch <- update:
			default:
			}
		}
		q.watchMu.RUnlock()
	}
}

// Remove deletes a job and closes any remaining watcher channels.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	delete(q.byID, id)
	q.mu.Unlock()

	q.watchMu.Lock()
	defer q.watchMu.Unlock()
	for _, ch := range q.watchers[id] {
		close(ch)
	}
	delete(q.watchers, id)
}
