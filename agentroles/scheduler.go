package agentroles

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentcore/core/actor"
	"github.com/agentcore/core/ids"
	"github.com/robfig/cron/v3"
)

// Priority orders jobs within the ready queue: higher values run first.
type Priority int

const (
	Low Priority = iota
	Medium
	High
	Critical
)

// ScheduleKind discriminates a Job's Schedule payload.
type ScheduleKind int

const (
	Immediate ScheduleKind = iota
	Once
	Interval
	Cron
)

// Schedule describes when a Job becomes eligible to run, and how (if at
// all) its next run is computed after it completes.
type Schedule struct {
	Kind ScheduleKind
	At   time.Time     // Once
	Every time.Duration // Interval
	Expr string         // Cron, parsed with cron.ParseStandard
}

// JobFn is the work a Job performs when run.
type JobFn func(ctx context.Context) error

// Job is one unit of schedulable work.
type Job struct {
	ID         ids.ID
	Name       string
	Priority   Priority
	Schedule   Schedule
	MaxRetries int
	Run        JobFn

	nextRunAt   time.Time
	retryCount  int
	paused      bool
	running     bool
	executedAt  time.Time
	lastErr     error
	cronSched   cron.Schedule
}

const (
	maxCompletedJobs  = 1000
	maxTotalJobs      = 10000
	maxScheduledTasks = 5000
)

// jobQueue is a container/heap priority queue ordering higher Priority
// first, then earlier nextRunAt.
type jobQueue []*Job

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].nextRunAt.Before(q[j].nextRunAt)
}
func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x any)   { *q = append(*q, x.(*Job)) }
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Scheduler is the actor that owns a priority queue of Jobs, dispatching
// each once it becomes due and rescheduling recurring ones. It is driven
// by external Tick calls rather than its own timer so tests can advance
// time deterministically.
type Scheduler struct {
	actor *actor.Actor

	mu        sync.Mutex
	queue     jobQueue
	completed []*Job
	clock     ids.Clock
	onJobDone func(ctx context.Context, job *Job, err error)
}

// ScheduleJobRequest is the message a Scheduler actor's mailbox accepts to
// enqueue a new Job.
type ScheduleJobRequest struct {
	Job *Job
}

// TickRequest asks the Scheduler to run every currently-due job.
type TickRequest struct {
	Now time.Time
}

// NewScheduler constructs a Scheduler actor.
func NewScheduler(clock ids.Clock, onJobDone func(ctx context.Context, job *Job, err error), onError actor.OnError) *Scheduler {
	s := &Scheduler{clock: clock, onJobDone: onJobDone}
	handler := func(ctx context.Context, msg actor.Message) error {
		switch req := msg.Payload.(type) {
		case ScheduleJobRequest:
			err := s.enqueue(req.Job)
			if msg.Reply != nil {
				msg.Reply <- err
			}
			return err
		case TickRequest:
			s.tick(ctx, req.Now)
			if msg.Reply != nil {
				msg.Reply <- struct{}{}
			}
			return nil
		default:
			return nil
		}
	}
	s.actor = actor.New("Scheduler", 128, handler, clock, onError, nil)
	return s
}

// Actor exposes the underlying actor for Supervisor registration.
func (s *Scheduler) Actor() *actor.Actor { return s.actor }

// Submit enqueues a Job through the actor mailbox.
func (s *Scheduler) Submit(ctx context.Context, job *Job) error {
	return s.actor.Send(ctx, actor.Message{Payload: ScheduleJobRequest{Job: job}})
}

// Tick asks the Scheduler to run every currently-due job, through the
// actor mailbox.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	return s.actor.Send(ctx, actor.Message{Payload: TickRequest{Now: now}})
}

func (s *Scheduler) enqueue(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue)+len(s.completed) >= maxTotalJobs {
		s.evictOldestNonRunningLocked()
	}
	if len(s.queue) >= maxScheduledTasks {
		s.evictOldestHalfLocked()
	}

	switch job.Schedule.Kind {
	case Immediate:
		job.nextRunAt = s.clock.Now()
	case Once:
		job.nextRunAt = job.Schedule.At
	case Interval:
		job.nextRunAt = s.clock.Now().Add(job.Schedule.Every)
	case Cron:
		sched, err := cron.ParseStandard(job.Schedule.Expr)
		if err != nil {
			return fmt.Errorf("scheduler: invalid cron expression %q: %w", job.Schedule.Expr, err)
		}
		job.cronSched = sched
		job.nextRunAt = sched.Next(s.clock.Now())
	default:
		return fmt.Errorf("scheduler: unknown schedule kind %d", job.Schedule.Kind)
	}

	heap.Push(&s.queue, job)
	return nil
}

// tick runs every job whose nextRunAt has passed and is not paused, then
// reschedules recurring jobs or retries failed ones with capped backoff.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []*Job
	var rest jobQueue
	for _, j := range s.queue {
		if !j.paused && !j.running && !now.Before(j.nextRunAt) {
			due = append(due, j)
		} else {
			rest = append(rest, j)
		}
	}
	sort.SliceStable(due, func(i, k int) bool {
		if due[i].Priority != due[k].Priority {
			return due[i].Priority > due[k].Priority
		}
		return due[i].nextRunAt.Before(due[k].nextRunAt)
	})
	s.queue = rest
	heap.Init(&s.queue)
	for _, j := range due {
		j.running = true
	}
	s.mu.Unlock()

	for _, j := range due {
		err := j.Run(ctx)
		s.finishJob(ctx, j, now, err)
	}
}

func (s *Scheduler) finishJob(ctx context.Context, j *Job, now time.Time, err error) {
	s.mu.Lock()
	j.running = false
	j.executedAt = now
	j.lastErr = err

	if err != nil {
		j.retryCount++
		if j.retryCount <= j.MaxRetries {
			backoff := time.Duration(1) << uint(j.retryCount)
			if backoff > 64 {
				backoff = 64
			}
			j.nextRunAt = now.Add(backoff * time.Second)
			heap.Push(&s.queue, j)
			s.mu.Unlock()
			if s.onJobDone != nil {
				s.onJobDone(ctx, j, err)
			}
			return
		}
		s.retireLocked(j)
		s.mu.Unlock()
		if s.onJobDone != nil {
			s.onJobDone(ctx, j, err)
		}
		return
	}

	j.retryCount = 0
	switch j.Schedule.Kind {
	case Interval:
		j.nextRunAt = now.Add(j.Schedule.Every)
		heap.Push(&s.queue, j)
	case Cron:
		j.nextRunAt = j.cronSched.Next(now)
		heap.Push(&s.queue, j)
	default:
		s.retireLocked(j)
	}
	s.mu.Unlock()
	if s.onJobDone != nil {
		s.onJobDone(ctx, j, nil)
	}
}

func (s *Scheduler) retireLocked(j *Job) {
	s.completed = append(s.completed, j)
	if len(s.completed) > maxCompletedJobs {
		sort.Slice(s.completed, func(i, k int) bool {
			return s.completed[i].executedAt.Before(s.completed[k].executedAt)
		})
		s.completed = s.completed[len(s.completed)-maxCompletedJobs:]
	}
}

// evictOldestNonRunningLocked drops the single oldest non-running job
// (preferring completed history) to keep the total job count bounded.
func (s *Scheduler) evictOldestNonRunningLocked() {
	if len(s.completed) > 0 {
		oldest := 0
		for i := 1; i < len(s.completed); i++ {
			if s.completed[i].executedAt.Before(s.completed[oldest].executedAt) {
				oldest = i
			}
		}
		s.completed = append(s.completed[:oldest], s.completed[oldest+1:]...)
		return
	}
	oldest := -1
	for i, j := range s.queue {
		if j.running {
			continue
		}
		if oldest == -1 || j.nextRunAt.Before(s.queue[oldest].nextRunAt) {
			oldest = i
		}
	}
	if oldest >= 0 {
		s.queue = append(s.queue[:oldest], s.queue[oldest+1:]...)
		heap.Init(&s.queue)
	}
}

// evictOldestHalfLocked drops the oldest half of the scheduled (not yet
// due/running) queue when it grows past maxScheduledTasks.
func (s *Scheduler) evictOldestHalfLocked() {
	sort.Slice(s.queue, func(i, k int) bool {
		return s.queue[i].nextRunAt.Before(s.queue[k].nextRunAt)
	})
	keep := len(s.queue) / 2
	s.queue = s.queue[len(s.queue)-keep:]
	heap.Init(&s.queue)
}

// Len reports the number of jobs currently queued (pending or due, not
// completed-and-retired).
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// CompletedLen reports the number of retired jobs retained for history.
func (s *Scheduler) CompletedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}
