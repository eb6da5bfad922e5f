package cron

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Periodic jobs run at most once per Every(). Jobs without it run every tick.
type Periodic interface {
	Every() time.Duration
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Registry tracks registered cron jobs.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Lookup finds a registered job by name.
func (r *Registry) Lookup(name string) (Job, bool) {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job, true
		}
	}
	return nil, false
}

func jobInterval(job Job) time.Duration {
	if p, ok := job.(Periodic); ok {
		return p.Every()
	}
	return 0
}
