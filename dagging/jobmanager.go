package dagging

import (
	"context"
	"sync"

	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/ulogger"
)

// ValidationJobManager runs validation jobs strictly one at a time on a
// dedicated worker goroutine. Serializing jobs keeps all graph mutation
// single-threaded, so jobs sharing a graph never race.
type ValidationJobManager struct {
	logger ulogger.Logger

	mu           sync.Mutex
	jobsPending  []*ValidationJob
	jobsPaused   []*ValidationJob
	jobsFinished []*ValidationJob
	jobCurrent   *ValidationJob
	known        map[*ValidationJob]struct{}
	killed       bool

	wakeup chan struct{}
	done   chan struct{}
}

// NewValidationJobManager starts the worker and returns the manager.
func NewValidationJobManager(logger ulogger.Logger) *ValidationJobManager {
	initPrometheusMetrics()

	m := &ValidationJobManager{
		logger: logger,
		known:  make(map[*ValidationJob]struct{}),
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go m.worker()

	return m
}

// AddJob queues a job. A job instance can be added once over the manager's
// lifetime; pause and unpause move it between queues instead.
func (m *ValidationJobManager) AddJob(job *ValidationJob) error {
	m.mu.Lock()

	if m.killed {
		m.mu.Unlock()

		return errors.NewServiceUnavailableError("job manager has been killed")
	}

	if _, ok := m.known[job]; ok {
		m.mu.Unlock()

		return errors.NewJobAlreadyAddedError("job has already been added")
	}

	m.known[job] = struct{}{}
	m.jobsPending = append(m.jobsPending, job)
	m.mu.Unlock()

	m.signal()

	return nil
}

// PauseJob takes a job out of circulation: a pending job moves to the paused
// queue, the currently running job is asked to stop and will land there when
// it winds down. Returns false for jobs this manager is not holding.
func (m *ValidationJobManager) PauseJob(job *ValidationJob) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job == m.jobCurrent {
		job.Stop()

		return true
	}

	for i, j := range m.jobsPending {
		if j == job {
			m.jobsPending = append(m.jobsPending[:i], m.jobsPending[i+1:]...)
			m.jobsPaused = append(m.jobsPaused, job)

			return true
		}
	}

	return false
}

// UnpauseJob requeues a paused job for another run.
func (m *ValidationJobManager) UnpauseJob(job *ValidationJob) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.killed {
		return false
	}

	for i, j := range m.jobsPaused {
		if j == job {
			m.jobsPaused = append(m.jobsPaused[:i], m.jobsPaused[i+1:]...)
			m.jobsPending = append(m.jobsPending, job)
			m.signalLocked()

			return true
		}
	}

	return false
}

// Kill stops accepting jobs, interrupts the current one and lets the worker
// exit. Pending jobs are abandoned unrun.
func (m *ValidationJobManager) Kill() {
	m.mu.Lock()
	m.killed = true

	if m.jobCurrent != nil {
		m.jobCurrent.Stop()
	}

	m.signalLocked()
	m.mu.Unlock()
}

// Wait blocks until the worker goroutine has exited after Kill.
func (m *ValidationJobManager) Wait() {
	<-m.done
}

// PendingCount returns the number of queued jobs, including the running one.
func (m *ValidationJobManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.jobsPending)
	if m.jobCurrent != nil {
		n++
	}

	return n
}

func (m *ValidationJobManager) signal() {
	select {
	case m.wakeup <- struct{}{}:
	default:
	}
}

// signalLocked is signal, named for call sites already holding mu. The
// channel send itself needs no lock.
func (m *ValidationJobManager) signalLocked() {
	m.signal()
}

func (m *ValidationJobManager) worker() {
	defer close(m.done)

	for {
		m.mu.Lock()

		if m.killed {
			m.mu.Unlock()

			return
		}

		var job *ValidationJob

		if len(m.jobsPending) > 0 {
			job = m.jobsPending[0]
			m.jobsPending = m.jobsPending[1:]
			m.jobCurrent = job
		}

		m.mu.Unlock()

		if job == nil {
			<-m.wakeup

			continue
		}

		reason := m.runJob(job)

		m.mu.Lock()
		m.jobCurrent = nil

		switch reason {
		case StopReasonStopped, StopReasonCrashed:
			m.jobsPaused = append(m.jobsPaused, job)
		default:
			m.jobsFinished = append(m.jobsFinished, job)
		}

		m.mu.Unlock()

		prometheusDaggingJobsRun.WithLabelValues(string(reason)).Inc()
	}
}

// runJob executes one job, converting panics and misuse errors into the
// crashed stop reason so one bad job cannot take the worker down.
func (m *ValidationJobManager) runJob(job *ValidationJob) (reason StopReason) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("validation job crashed: %v", r)
			reason = StopReasonCrashed
		}
	}()

	reason, err := job.Run(context.Background())
	if err != nil {
		m.logger.Errorf("validation job refused to run: %v", err)

		return StopReasonCrashed
	}

	return reason
}
