package worker

import "sync"

// Task represents a unit of work to be processed by a worker
type Task func()

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	tasks    chan Task
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWorkerPool starts numWorkers goroutines. Values below one are raised to one.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	pool := &WorkerPool{tasks: make(chan Task)}
	for i := 0; i < numWorkers; i++ {
		go pool.run()
	}
	return pool
}

func (p *WorkerPool) run() {
	for task := range p.tasks {
		task()
		p.wg.Done()
	}
}

// Submit blocks until a worker accepts the task. It must not be called after Stop.
func (p *WorkerPool) Submit(task Task) {
	p.wg.Add(1)
	p.tasks <- task
}

// Wait blocks until every submitted task has finished.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Stop lets in-flight tasks finish and releases the workers.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.tasks)
	})
}
