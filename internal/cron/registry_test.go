package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(jobA)
	registry.Register(jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryLookupAndNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &stubJob{name: "ledger-replay"})
	if len(registry.Jobs()) != 1 {
		t.Fatalf("nil jobs should be ignored")
	}
	if _, ok := registry.Lookup("ledger-replay"); !ok {
		t.Fatal("expected job to be found")
	}
	if _, ok := registry.Lookup("nope"); ok {
		t.Fatal("unexpected job found")
	}
	if jobInterval(&stubJob{}) != 0 {
		t.Fatal("jobs without a cadence run every tick")
	}
}
