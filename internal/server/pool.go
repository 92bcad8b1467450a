package server

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunc is one unit of work handed to the pool.
type WorkerFunc func(t *tomb.Tomb, task any) error

// WorkerPool runs up to n workers under a shared tomb, each pulling tasks
// off one shared channel until the tomb starts dying.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(n int) WorkerPool {
	return WorkerPool{n: n, tasks: make(chan any, taskChanSize)}
}

// AddTask enqueues task for the next free worker.
func (p *WorkerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup spins up the pool's full complement of workers under t.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunc) {
	log.Info().Int("workers", p.n).Msg("starting connection worker pool")
	for i := 0; i < p.n; i++ {
		t.Go(func() error {
			return p.worker(t, work)
		})
	}
}

func (p *WorkerPool) worker(t *tomb.Tomb, work WorkerFunc) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("connection worker exiting")
				return err
			}
		}
	}
}
