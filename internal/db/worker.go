package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrWorkerClosed is returned by Do once Close has been called.
var ErrWorkerClosed = errors.New("db: write worker closed")

// TxFn runs inside a write transaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

type writeJob struct {
	ctx    context.Context
	op     string
	fn     TxFn
	result chan error
}

// Worker funnels every store write through one goroutine so SQLite never
// sees two writers. Each job names its store operation for the logs.
type Worker struct {
	conn  *sql.DB
	queue chan writeJob
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewWorker(conn *sql.DB) *Worker {
	w := &Worker{
		conn:  conn,
		queue: make(chan writeJob, 256),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Close stops accepting writes, finishes the queued ones and returns.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}

// Do queues fn under the operation name op and waits for the commit. If ctx
// ends after the job was queued the transaction may still land; only the
// caller stops waiting.
func (w *Worker) Do(ctx context.Context, op string, fn TxFn) error {
	result := make(chan error, 1)

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWorkerClosed
	}
	select {
	case w.queue <- writeJob{ctx: ctx, op: op, fn: fn, result: result}:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)

	for j := range w.queue {
		j.result <- w.apply(j)
	}
}

func (w *Worker) apply(j writeJob) error {
	if err := j.ctx.Err(); err != nil {
		log.Debug().Str("store_op", j.op).Msg("write skipped, caller gone")
		return err
	}

	start := time.Now()
	tx, err := w.conn.BeginTx(j.ctx, nil)
	if err != nil {
		log.Error().Err(err).Str("store_op", j.op).Msg("begin write transaction")
		return err
	}
	if err := j.fn(j.ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Str("store_op", j.op).Msg("rollback failed")
		}
		log.Warn().Err(err).Str("store_op", j.op).Msg("write rolled back")
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("store_op", j.op).Msg("commit failed")
		return err
	}
	log.Trace().Str("store_op", j.op).Dur("took", time.Since(start)).Msg("write committed")
	return nil
}
