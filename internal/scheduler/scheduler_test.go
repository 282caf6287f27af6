package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/domain/entity"
	"github.com/R3E-Network/worldcore/internal/domain/verbdom"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/storage"
)

func verbWithCode(entityID int64, name string, code any) verbdom.Verb {
	return verbdom.Verb{EntityID: entityID, Name: name, Code: code, Permissions: verbdom.Permissions{Scope: verbdom.ScopePublic}}
}

func newTestRunner(t *testing.T) (*dispatcher.Runner, storage.Store) {
	t.Helper()
	repo := storage.NewMemory()
	reg := interp.NewRegistry()
	reg.Register(interp.HandlerRecord{
		Name: "+", MinArity: 2, MaxArity: -1,
		Handler: func(args []any, ctx *interp.Context) (any, error) {
			sum := 0.0
			for _, a := range args {
				sum += a.(float64)
			}
			return sum, nil
		},
	})
	return dispatcher.NewRunner(repo, reg), repo
}

func TestSchedulerDrainsDueEntries(t *testing.T) {
	runner, repo := newTestRunner(t)
	ctx := context.Background()
	e, err := repo.CreateEntity(ctx, entity.Entity{Kind: entity.KindItem})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if _, err := repo.AddVerb(ctx, verbWithCode(e.ID, "tick", []any{"+", 1.0, 2.0})); err != nil {
		t.Fatalf("add verb: %v", err)
	}

	s := New(runner, nil, time.Hour, 100)
	s.ScheduleVerb(e.ID, "tick", nil, -5) // already due

	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", s.Pending())
	}
	s.drain(ctx)
	if s.Pending() != 0 {
		t.Fatalf("expected queue drained, got %d pending", s.Pending())
	}
}

func TestSchedulerSkipsNotYetDue(t *testing.T) {
	runner, _ := newTestRunner(t)
	s := New(runner, nil, time.Hour, 100)
	s.ScheduleVerb(1, "tick", nil, 60_000)

	s.drain(context.Background())
	if s.Pending() != 1 {
		t.Fatalf("expected entry not yet due to remain queued, got %d pending", s.Pending())
	}
}

func TestSchedulerLogsFailureWithoutPanicking(t *testing.T) {
	runner, _ := newTestRunner(t)
	s := New(runner, nil, time.Hour, 100)
	s.ScheduleVerb(999, "missing", nil, -1)

	s.drain(context.Background()) // entity 999 has no such verb: must log, not panic
	if s.Pending() != 0 {
		t.Fatalf("expected failed entry still removed from queue, got %d pending", s.Pending())
	}
}
