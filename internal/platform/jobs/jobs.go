// Package jobs runs named periodic maintenance tasks on a cron schedule
package jobs

import (
	"context"
	"sync"
	"time"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work
type Job func(ctx context.Context) error

// defaultTimeout bounds a single run
const defaultTimeout = 10 * time.Minute

// Runner owns a cron instance and the jobs registered on it
type Runner struct {
	cron    *cron.Cron
	log     logger.Logger
	timeout time.Duration

	mu   sync.Mutex
	ids  map[string]cron.EntryID
	base context.Context
	stop context.CancelFunc
}

// New builds a Runner evaluating schedules in loc (UTC when nil)
func New(loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	base, stop := context.WithCancel(context.Background())
	return &Runner{
		// skip a run while the previous one is still going
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     *logger.Named("jobs"),
		timeout: defaultTimeout,
		ids:     make(map[string]cron.EntryID),
		base:    base,
		stop:    stop,
	}
}

// Add registers job under name; schedule takes the standard five fields or descriptors like "@every 5m"
func (r *Runner) Add(name, schedule string, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ids[name]; dup {
		return perr.Newf(perr.ErrorCodeConflict, "job %s already registered", name)
	}
	id, err := r.cron.AddFunc(schedule, func() { r.run(name, job) })
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "schedule job %s (%s)", name, schedule)
	}
	r.ids[name] = id
	r.log.Info().Str("job", name).Str("schedule", schedule).Msg("job scheduled")
	return nil
}

// RunNow executes job immediately on the caller's goroutine
func (r *Runner) RunNow(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	r.log.Debug().Str("job", name).Msg("job run now")
	return job(ctx)
}

func (r *Runner) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("job", name).Interface("panic", rec).Msg("job panicked")
		}
	}()
	if err := job(ctx); err != nil {
		r.log.Warn().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("job failed")
		return
	}
	r.log.Debug().Str("job", name).Dur("elapsed", time.Since(start)).Msg("job done")
}

// Start begins firing schedules
func (r *Runner) Start() { r.cron.Start() }

// Stop cancels running jobs and waits for them to return
func (r *Runner) Stop() {
	r.stop()
	<-r.cron.Stop().Done()
}

// Next reports the next fire time for name
func (r *Runner) Next(name string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.ids[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}
