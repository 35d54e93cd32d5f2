package groupqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Job is one unit of ingestion work bound to a group channel. Jobs that
// share a GroupKey run on the same worker in arrival order, so every
// group sees its messages strictly FIFO while distinct groups proceed
// in parallel.
type Job struct {
	GroupKey string
	Handler  func(ctx context.Context) error
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	Workers         []WorkerStats `json:"workers"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool shards jobs over a fixed set of workers by fnv hash of the group
// key. A full shard drops the job rather than blocking the dispatcher.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
}

type worker struct {
	id            int
	jobs          chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	jobsProcessed int64
	pool          *Pool
}

func New(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		wctx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:     i,
			jobs:   make(chan Job, p.queueSize),
			ctx:    wctx,
			cancel: cancel,
			pool:   p,
		}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run(&p.wg)
	}
	logrus.Infof("[GROUP_QUEUE] Started with %d workers, queue size %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues a job on its group's shard without blocking and
// reports whether it was accepted.
func (p *Pool) TryDispatch(job Job) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}
	shard := p.shardFor(job.GroupKey)
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobs <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		return true
	}
	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[GROUP_QUEUE] Worker %d queue full, dropping job for group %s", shard, job.GroupKey)
	return false
}

func (p *Pool) Dispatch(job Job) {
	_ = p.TryDispatch(job)
}

// Stop cancels the workers and waits for in-flight and queued jobs to
// drain.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		logrus.Info("[GROUP_QUEUE] Stopping workers...")
		for _, w := range p.workers {
			w.cancel()
			close(w.jobs)
		}
		p.wg.Wait()
		logrus.Info("[GROUP_QUEUE] All workers stopped")
	})
}

func (p *Pool) shardFor(groupKey string) int {
	h := fnv.New32a()
	h.Write([]byte(groupKey))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) GetStats() Stats {
	workers := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		workers[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobs),
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}
	return Stats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		Workers:         workers,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(job)
		case <-w.ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *worker) process(job Job) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[GROUP_QUEUE] Worker %d panic for group %s: %v", w.id, job.GroupKey, r)
		}
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()
	if err := job.Handler(w.ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Errorf("[GROUP_QUEUE] Worker %d job failed for group %s", w.id, job.GroupKey)
	}
}

// drain finishes queued jobs before shutdown so accepted messages are
// never silently lost.
func (w *worker) drain() {
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(job)
		default:
			return
		}
	}
}
