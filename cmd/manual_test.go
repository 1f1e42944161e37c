package main

import (
	"context"
	"errors"
	"testing"

	"talent-mirror/internal/scheduler"
)

func TestRunOnceManual(t *testing.T) {
	t.Parallel()

	stub := &stubScheduler{report: scheduler.Report{Companies: 2, Created: 3}}
	builds, cleanups := 0, 0

	report, err := runOnceManual(context.Background(), AppConfig{}, nil, func(AppConfig) (appDeps, func(), error) {
		builds++
		return appDeps{sched: stub}, func() { cleanups++ }, nil
	})
	if err != nil {
		t.Fatalf("runOnceManual error: %v", err)
	}
	if report.Created != 3 {
		t.Fatalf("expected created=3, got %d", report.Created)
	}
	if builds != 1 || cleanups != 1 {
		t.Fatalf("expected one build and one cleanup, got %d/%d", builds, cleanups)
	}
	if stub.runOnceCalls != 1 || len(stub.companies) != 0 {
		t.Fatalf("expected RunOnce called once, got %d (companies %v)", stub.runOnceCalls, stub.companies)
	}
}

func TestRunOnceManualSelectedCompanies(t *testing.T) {
	t.Parallel()

	stub := &stubScheduler{}
	_, err := runOnceManual(context.Background(), AppConfig{}, []string{"c1", "c2"}, func(AppConfig) (appDeps, func(), error) {
		return appDeps{sched: stub}, func() {}, nil
	})
	if err != nil {
		t.Fatalf("runOnceManual error: %v", err)
	}
	if stub.runOnceCalls != 0 || len(stub.companies) != 2 {
		t.Fatalf("expected RunCompanies with 2 ids, got runOnce=%d companies=%v", stub.runOnceCalls, stub.companies)
	}
}

func TestRunOnceManualBuilderError(t *testing.T) {
	t.Parallel()

	_, err := runOnceManual(context.Background(), AppConfig{}, nil, func(AppConfig) (appDeps, func(), error) {
		return appDeps{}, func() {}, errors.New("build fail")
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

// --- stubs ---

type stubScheduler struct {
	report       scheduler.Report
	runOnceCalls int
	companies    []string
}

func (s *stubScheduler) RunOnce(context.Context) (scheduler.Report, error) {
	s.runOnceCalls++
	return s.report, nil
}

func (s *stubScheduler) RunCompanies(_ context.Context, ids []string) (scheduler.Report, error) {
	s.companies = append(s.companies, ids...)
	return s.report, nil
}

func (s *stubScheduler) Start(context.Context) error {
	return nil
}
