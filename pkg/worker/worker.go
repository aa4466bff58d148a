package worker

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/campuseats/meal-gateway/pkg/logger"
)

type Handler = func(workerIndex int, job interface{})

// Manager fans jobs out over a fixed pool of goroutines. The job channel may
// be shared: Exit() signals the workers but never closes the channel, since
// other producers may still hold it.
type Manager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	sigTerm        chan os.Signal
	do             Handler
	waiter         *sync.WaitGroup
}

func NewManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *Manager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}
	// buffered so a signal per worker can queue up before the pool starts
	sigChan := make(chan os.Signal, numberOfWorkers)
	signal.Notify(sigChan, syscall.SIGTERM)

	return &Manager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		sigTerm:        sigChan,
		waiter:         &sync.WaitGroup{},
	}
}

func (w *Manager) GetUnreadCount() int64 {
	if w.jobChannel == nil {
		return 0
	}
	return int64(len(w.jobChannel))
}

func (w *Manager) JobEvents() chan interface{} {
	return w.jobChannel
}

func (w *Manager) SetWorker(worker Handler) {
	w.do = worker
}

// Enqueue publishes a job onto the channel
func (w *Manager) Enqueue(val interface{}) {
	w.jobChannel <- val
}

// Start runs the pool and blocks until every worker has terminated.
func (w *Manager) Start() error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-w.sigTerm:
					w.waiter.Done()
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return errors.New("workers terminated")
}

// Exit signals every worker to stop after its current job.
func (w *Manager) Exit() {
	logger.Info("worker manager shutting down")
	for i := 0; i < w.numberOfWorker; i++ {
		w.sigTerm <- syscall.SIGTERM
	}
}
