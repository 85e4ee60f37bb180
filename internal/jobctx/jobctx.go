// Package jobctx carries per-job identity and timing into every selector
// and applier, replacing the scoped-object pattern the upstream source used.
package jobctx

import (
	"time"

	"github.com/google/uuid"
)

// Context is threaded through the ETL loop for a single job invocation.
type Context struct {
	JobID      string
	Env        string
	RunID      string
	JobStartAt time.Time
	DryRun     bool
}

// New creates a job context stamped with the current UTC time.
func New(env string, dryRun bool) *Context {
	return &Context{
		JobID:      "job-" + uuid.New().String(),
		Env:        env,
		RunID:      uuid.New().String(),
		JobStartAt: time.Now().UTC(),
		DryRun:     dryRun,
	}
}

// TodayStartUTC returns t truncated to 00:00:00.000 UTC.
func TodayStartUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// TodayStart is a convenience wrapper over TodayStartUTC(ctx.JobStartAt).
func (c *Context) TodayStart() time.Time {
	return TodayStartUTC(c.JobStartAt)
}
