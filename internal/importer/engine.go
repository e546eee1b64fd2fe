// Package importer runs the console's bulk contact imports. Each job
// walks a parsed contact batch and submits one contact at a time to the
// provider, with an optional fixed delay between submissions. Jobs are
// held in memory only; an account has at most one job, and starting a new
// import replaces whatever job the account had, finished or not.
//
// The engine owns two maps keyed by job ID: the job table the console
// reads, and a side table of control flags the loops poll. The flags
// entry doubles as an ownership token. Every loop keeps the pointer it
// was born with and checks it against the table before acting; once a
// replacement swaps the entry out, the old loop sees the mismatch and
// exits without publishing anything. All mutation of a job's state goes
// through its own loop (or the command methods) under one engine mutex.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inboxops/brevo-console/internal/accounts"
	"github.com/inboxops/brevo-console/internal/pkg/logger"
)

// AccountSource resolves an account ID to its stored credential. All
// account store backends satisfy this.
type AccountSource interface {
	Get(ctx context.Context, id string) (*accounts.Account, error)
}

// Submitter pushes one contact to the provider and returns the raw
// response body. Implementations must not retry; a failed contact is
// recorded and the job moves on.
type Submitter interface {
	UpsertContact(ctx context.Context, apiKey string, listID int64, email, firstName, lastName string) (string, error)
}

// Config holds the engine's timing knobs. Zero values take the
// production defaults; tests shrink them.
type Config struct {
	// PausePoll is how often a paused loop re-checks its flags
	PausePoll time.Duration
	// TickInterval is the cadence of the elapsed-seconds counter
	TickInterval time.Duration
	// StartYield is the settle window between discarding an account's
	// previous job and installing its replacement
	StartYield time.Duration
}

func (c Config) withDefaults() Config {
	if c.PausePoll <= 0 {
		c.PausePoll = 500 * time.Millisecond
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.StartYield <= 0 {
		c.StartYield = 100 * time.Millisecond
	}
	return c
}

// controlFlags is a job's entry in the side table. Absence of the entry
// (or a different pointer under the same ID) tells a loop it has been
// orphaned.
type controlFlags struct {
	paused    bool
	cancelled bool
}

// Engine runs import jobs
type Engine struct {
	accounts AccountSource
	provider Submitter
	cfg      Config

	mu        sync.RWMutex
	jobs      map[string]*Job
	flags     map[string]*controlFlags
	byAccount map[string]string

	// startMu serializes the discard/yield/install sequence so two
	// simultaneous starts for one account cannot interleave
	startMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates an import engine. Call Start before submitting jobs.
func New(accountSrc AccountSource, provider Submitter, cfg Config) *Engine {
	return &Engine{
		accounts:  accountSrc,
		provider:  provider,
		cfg:       cfg.withDefaults(),
		jobs:      make(map[string]*Job),
		flags:     make(map[string]*controlFlags),
		byAccount: make(map[string]string),
	}
}

// Start makes the engine accept jobs
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.mu.Unlock()

	log.Printf("[ImportEngine] Started (pause_poll=%s tick=%s)", e.cfg.PausePoll, e.cfg.TickInterval)
}

// Stop aborts all running loops and waits for them to exit. Job state is
// left as-is; it is in-memory only and dies with the process.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	log.Println("[ImportEngine] Stopping...")
	e.wg.Wait()
	log.Println("[ImportEngine] Stopped")
}

// Running reports whether the engine accepts jobs
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// StartJob validates a request, replaces the account's existing job if
// there is one, and launches the import loop. Validation failures leave
// any existing job untouched.
func (e *Engine) StartJob(ctx context.Context, req StartRequest) (*Job, error) {
	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return nil, ErrStopped
	}

	if len(req.Contacts) == 0 {
		return nil, ErrNoContacts
	}

	account, err := e.accounts.Get(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("resolving account: %w", err)
	}

	e.startMu.Lock()
	defer e.startMu.Unlock()

	// Discard the account's previous job unconditionally, whatever state
	// it is in. Dropping its flags entry orphans the old loop.
	e.mu.Lock()
	oldID, hadOld := e.byAccount[req.AccountID]
	if hadOld {
		delete(e.jobs, oldID)
		delete(e.flags, oldID)
		delete(e.byAccount, req.AccountID)
	}
	e.mu.Unlock()

	if hadOld {
		log.Printf("[ImportEngine] Job %s discarded, account %s starting a new import", oldID, req.AccountID)
		// Give the orphaned loop a beat to notice before the new job
		// appears under the same account
		time.Sleep(e.cfg.StartYield)
	}

	job := &Job{
		ID:            uuid.New().String(),
		AccountID:     req.AccountID,
		ListID:        req.ListID,
		ListName:      req.ListName,
		Status:        StatusRunning,
		Results:       []Result{},
		TotalContacts: len(req.Contacts),
		Delay:         req.Delay,
		StartedAt:     time.Now().UTC(),
	}
	fl := &controlFlags{}

	e.mu.Lock()
	e.jobs[job.ID] = job
	e.flags[job.ID] = fl
	e.byAccount[req.AccountID] = job.ID
	snapshot := job.clone()
	e.mu.Unlock()

	log.Printf("[ImportEngine] Job %s started: %d contacts to list %d (%s)",
		job.ID, len(req.Contacts), req.ListID, req.ListName)

	e.wg.Add(2)
	go e.run(job.ID, fl, account.APIKey, req)
	go e.tick(job.ID, fl)

	return &snapshot, nil
}

// run is the import loop for one job. It is the only writer of the job's
// results and terminal status.
func (e *Engine) run(jobID string, fl *controlFlags, apiKey string, req StartRequest) {
	defer e.wg.Done()

	total := len(req.Contacts)
	delay := time.Duration(req.Delay * float64(time.Second))

	for i, contact := range req.Contacts {
		paused, cancelled, ok := e.flagState(jobID, fl)
		if !ok {
			log.Printf("[ImportEngine] Job %s loop orphaned, exiting", jobID)
			return
		}
		if cancelled {
			e.finish(jobID, fl, StatusCancelled)
			return
		}

		// Paused: poll until resumed. A cancel observed here ends the
		// whole job, not just the wait.
		for paused {
			if !e.sleep(e.cfg.PausePoll) {
				return
			}
			paused, cancelled, ok = e.flagState(jobID, fl)
			if !ok {
				log.Printf("[ImportEngine] Job %s loop orphaned while paused, exiting", jobID)
				return
			}
			if cancelled {
				e.finish(jobID, fl, StatusCancelled)
				return
			}
		}

		// Inter-contact delay, skipped for the first contact. A cancel or
		// replacement can land while we sleep, so re-check before
		// submitting.
		if i > 0 && delay > 0 {
			if !e.sleep(delay) {
				return
			}
			_, cancelled, ok = e.flagState(jobID, fl)
			if !ok {
				return
			}
			if cancelled {
				e.finish(jobID, fl, StatusCancelled)
				return
			}
		}

		data, err := e.provider.UpsertContact(e.ctx, apiKey, req.ListID, contact.Email, contact.FirstName, contact.LastName)
		if e.ctx.Err() != nil {
			return
		}

		result := Result{Index: i + 1, Email: contact.Email, Status: ResultSuccess, Data: data}
		if err != nil {
			result.Status = ResultFailed
			result.Data = errorPayload(err)
			log.Printf("[ImportEngine] Job %s: contact %d/%d %s failed: %v",
				jobID, i+1, total, logger.RedactEmail(contact.Email), err)
		}

		e.record(jobID, fl, result, (i+1)*100/total)
	}

	e.finish(jobID, fl, StatusCompleted)
}

// tick advances the job's elapsed seconds while it is running. It exits
// when the job reaches a terminal state or is replaced.
func (e *Engine) tick(jobID string, fl *controlFlags) {
	defer e.wg.Done()

	for {
		if !e.sleep(e.cfg.TickInterval) {
			return
		}

		e.mu.Lock()
		if e.flags[jobID] != fl {
			e.mu.Unlock()
			return
		}
		if job := e.jobs[jobID]; job != nil && job.Status == StatusRunning {
			job.ElapsedTime++
		}
		e.mu.Unlock()
	}
}

// flagState reads the job's flags, with ok=false when the loop no longer
// owns its entry
func (e *Engine) flagState(jobID string, fl *controlFlags) (paused, cancelled, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	current := e.flags[jobID]
	if current == nil || current != fl {
		return false, false, false
	}
	return current.paused, current.cancelled, true
}

// record appends one result (newest first) and updates progress, unless
// the job was replaced mid-submission
func (e *Engine) record(jobID string, fl *controlFlags, result Result, progress int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flags[jobID] != fl {
		return
	}
	job := e.jobs[jobID]
	if job == nil {
		return
	}

	job.Results = append([]Result{result}, job.Results...)
	job.Progress = progress
}

// finish publishes a terminal status and retires the flags entry, which
// also stops the tick loop. The job record itself stays visible until
// the account starts another import.
func (e *Engine) finish(jobID string, fl *controlFlags, status Status) {
	e.mu.Lock()
	if e.flags[jobID] != fl {
		e.mu.Unlock()
		return
	}
	delete(e.flags, jobID)

	job := e.jobs[jobID]
	if job == nil {
		e.mu.Unlock()
		return
	}
	job.Status = status
	if status == StatusCompleted {
		job.Progress = 100
	}
	processed := len(job.Results)
	totalContacts := job.TotalContacts
	elapsed := job.ElapsedTime
	e.mu.Unlock()

	log.Printf("[ImportEngine] Job %s %s: %d/%d contacts processed in %ds",
		jobID, status, processed, totalContacts, elapsed)
}

// sleep waits d unless the engine stops first
func (e *Engine) sleep(d time.Duration) bool {
	select {
	case <-e.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// errorPayload extracts the provider's error body when the error carries
// one, falling back to the error text
func errorPayload(err error) string {
	var pe interface{ Payload() string }
	if errors.As(err, &pe) {
		if p := pe.Payload(); p != "" {
			return p
		}
	}
	return err.Error()
}

// Pause asks a live job to hold before its next contact. Returns false
// for unknown or already-finished jobs.
func (e *Engine) Pause(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	fl := e.flags[jobID]
	job := e.jobs[jobID]
	if fl == nil || job == nil {
		return false
	}

	fl.paused = true
	job.Status = StatusPaused
	log.Printf("[ImportEngine] Job %s paused", jobID)
	return true
}

// Resume lets a paused job continue
func (e *Engine) Resume(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	fl := e.flags[jobID]
	job := e.jobs[jobID]
	if fl == nil || job == nil {
		return false
	}

	fl.paused = false
	job.Status = StatusRunning
	log.Printf("[ImportEngine] Job %s resumed", jobID)
	return true
}

// Cancel flags a live job for cancellation. The loop publishes the
// cancelled status when it reaches its next checkpoint, so the job may
// still read as running or paused for a moment after this returns.
func (e *Engine) Cancel(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	fl := e.flags[jobID]
	if fl == nil {
		return false
	}

	fl.cancelled = true
	log.Printf("[ImportEngine] Job %s cancellation requested", jobID)
	return true
}

// Jobs returns a snapshot of every job, newest first
func (e *Engine) Jobs() []Job {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Job, 0, len(e.jobs))
	for _, job := range e.jobs {
		out = append(out, job.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Job returns a snapshot of one job
func (e *Engine) Job(id string) (*Job, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	job := e.jobs[id]
	if job == nil {
		return nil, false
	}
	snapshot := job.clone()
	return &snapshot, true
}
