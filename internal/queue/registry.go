package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"go-insight-pipeline/internal/model"
)

// ErrJobNotFound is returned (wrapped) for unknown job ids. Check it with
// eris.Is.
var ErrJobNotFound = eris.New("queue: job not found")

// subscriberBuffer is how many undelivered states a subscriber may lag
// behind before the oldest is dropped.
const subscriberBuffer = 16

// Registry holds the current state of every job and fans changes out to
// subscribers. Every write replaces the whole record, then notifies.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]model.Job
	subs    map[string]map[int]chan model.Job
	nextSub int
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]model.Job),
		subs: make(map[string]map[int]chan model.Job),
	}
}

// Put stores job as-is, replacing any previous record.
func (r *Registry) Put(job model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.DataStack == nil {
		job.DataStack = []int{}
	}
	r.jobs[job.ID] = job
	r.notifyLocked(job)
}

// Update merges u into the job's record. Status changes must be allowed by
// the job state machine.
func (r *Registry) Update(id string, u model.JobUpdate) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.jobs[id]
	if !ok {
		return model.Job{}, eris.Wrapf(ErrJobNotFound, "queue: update %s", id)
	}
	if u.Status != nil && !cur.Status.CanTransition(*u.Status) {
		return cur, eris.Errorf("queue: job %s cannot move from %s to %s", id, cur.Status, *u.Status)
	}

	next := u.Apply(cur)
	next.UpdatedAt = time.Now().UTC()
	r.jobs[id] = next
	r.notifyLocked(next)
	return next, nil
}

// Get returns a copy of the job's current state.
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// List returns all jobs, newest first.
func (r *Registry) List() []model.Job {
	r.mu.RLock()
	out := make([]model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Subscribe returns a channel receiving every new state of the job, starting
// with the current one if the job exists. Slow subscribers lose the oldest
// undelivered states, never the newest. cancel closes the channel.
func (r *Registry) Subscribe(id string) (<-chan model.Job, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan model.Job, subscriberBuffer)
	subID := r.nextSub
	r.nextSub++
	if r.subs[id] == nil {
		r.subs[id] = make(map[int]chan model.Job)
	}
	r.subs[id][subID] = ch
	if j, ok := r.jobs[id]; ok {
		ch <- j
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs[id], subID)
			if len(r.subs[id]) == 0 {
				delete(r.subs, id)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (r *Registry) notifyLocked(job model.Job) {
	for _, ch := range r.subs[job.ID] {
		select {
		case ch <- job:
		default:
			// Full: drop the oldest state so the latest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- job:
			default:
			}
		}
	}
}
