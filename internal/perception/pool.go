package perception

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Camlink/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("perception pool closed")

// Job is one unit of perception work. ctx is the pool's run context.
type Job func(ctx context.Context)

// lane is the FIFO of one session. At most one of its jobs runs at a time,
// which keeps results in arrival order per session.
type lane struct {
	sid      domain.SessionID
	slots    chan struct{}
	jobs     []Job
	inFlight bool
	queued   bool
	removed  bool
}

// Pool runs perception jobs on a fixed number of workers. Sessions take
// turns: a lane goes to the back of the ready queue after every job, so a
// busy session cannot starve the others.
//
// With zero workers Submit runs the job inline on the caller goroutine.
type Pool struct {
	workers   int
	laneDepth int

	mu    sync.Mutex
	cond  *sync.Cond
	lanes map[domain.SessionID]*lane
	ready []*lane

	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewPool(workers, laneDepth int) *Pool {
	if laneDepth <= 0 {
		laneDepth = 1
	}
	p := &Pool{
		workers:   workers,
		laneDepth: laneDepth,
		lanes:     make(map[domain.SessionID]*lane),
		done:      make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *Pool) Workers() int { return p.workers }

// Run starts the workers and blocks until ctx is done and every queued job
// has finished. Submit blocks once a lane is full if Run was never called.
func (p *Pool) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error {
			p.worker(ctx, id)
			return nil
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.done:
		}
	}()
	log.Info().Str("module", "perception.pool").Int("workers", p.workers).Int("lane_depth", p.laneDepth).Msg("pool started")
	return g.Wait()
}

// Close rejects new jobs. Jobs already queued still run.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.done)
		p.cond.Broadcast()
		p.mu.Unlock()
	})
}

// Submit queues job on the lane of sid, blocking while that lane is full.
func (p *Pool) Submit(ctx context.Context, sid domain.SessionID, job Job) error {
	if p.workers <= 0 {
		select {
		case <-p.done:
			return ErrPoolClosed
		default:
		}
		job(ctx)
		return nil
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrPoolClosed
		}
		l := p.laneLocked(sid)
		p.mu.Unlock()

		select {
		case l.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return ErrPoolClosed
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			<-l.slots
			return ErrPoolClosed
		}
		if l.removed {
			// Lane was retired while we waited for a slot.
			p.mu.Unlock()
			<-l.slots
			continue
		}
		l.jobs = append(l.jobs, job)
		p.scheduleLocked(l)
		p.mu.Unlock()
		return nil
	}
}

func (p *Pool) laneLocked(sid domain.SessionID) *lane {
	if l, ok := p.lanes[sid]; ok {
		return l
	}
	l := &lane{sid: sid, slots: make(chan struct{}, p.laneDepth)}
	p.lanes[sid] = l
	return l
}

func (p *Pool) scheduleLocked(l *lane) {
	if l.inFlight || l.queued || len(l.jobs) == 0 {
		return
	}
	l.queued = true
	p.ready = append(p.ready, l)
	p.cond.Signal()
}

// next blocks until a job is available. It returns false once the pool is
// closed and drained.
func (p *Pool) next() (*lane, Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.ready) == 0 {
		if p.closed {
			return nil, nil, false
		}
		p.cond.Wait()
	}
	l := p.ready[0]
	p.ready[0] = nil
	p.ready = p.ready[1:]
	l.queued = false
	l.inFlight = true
	job := l.jobs[0]
	l.jobs[0] = nil
	l.jobs = l.jobs[1:]
	return l, job, true
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		l, job, ok := p.next()
		if !ok {
			log.Debug().Str("module", "perception.pool").Int("worker", id).Msg("worker exit")
			return
		}
		p.runJob(ctx, job)
		<-l.slots

		p.mu.Lock()
		l.inFlight = false
		if len(l.jobs) > 0 {
			p.scheduleLocked(l)
		} else if len(l.slots) == 0 {
			l.removed = true
			delete(p.lanes, l.sid)
		}
		p.mu.Unlock()
	}
}

func (p *Pool) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "perception.pool").Interface("panic", r).Msg("perception job panicked")
		}
	}()
	job(ctx)
}
