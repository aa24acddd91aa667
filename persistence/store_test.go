package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vakaflow-ai/vakaflow/flow"
	"github.com/vakaflow-ai/vakaflow/internal/database"
)

// backends runs the same assertions against the memory and the sqlite
// implementations of both storage interfaces.
func backends(t *testing.T) map[string]*Stores {
	t.Helper()

	memStores, err := NewStores(Config{Type: StoreTypeMemory}, nil)
	require.NoError(t, err)

	dbStores, err := NewStores(Config{
		Type:     StoreTypeDatabase,
		Database: database.Config{Driver: "sqlite", DSN: ":memory:"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbStores.Close() })

	return map[string]*Stores{"memory": memStores, "sqlite": dbStores}
}

func sampleFlow(id string) *flow.Definition {
	return &flow.Definition{
		ID:      id,
		Name:    "Vendor Onboarding",
		Version: 2,
		Status:  flow.FlowStatusActive,
		Nodes: []flow.Node{
			{ID: "intake", Type: flow.NodeTypeAgent, AgentRef: "compliance", Skill: "intake_review",
				Input: "vendor=${context.context_id}"},
			{ID: "end", Type: flow.NodeTypeTerminal},
		},
		Edges: []flow.Edge{{From: "intake", To: "end", Condition: "result.intake.ok == true"}},
		Config: flow.ExecPolicy{
			MaxConcurrentExecutions: 2,
			RetryOnFailure:          true,
			RetryCount:              1,
			OnLimitExceeded:         flow.LimitPolicyReject,
		},
	}
}

func TestFlowStoreRoundTrip(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			def := sampleFlow("vendor-onboarding")
			require.NoError(t, stores.Flows.Put(ctx, def))

			got, err := stores.Flows.Get(ctx, "vendor-onboarding")
			require.NoError(t, err)
			assert.Equal(t, def.Name, got.Name)
			assert.Equal(t, def.Version, got.Version)
			assert.Equal(t, def.Nodes, got.Nodes)
			assert.Equal(t, def.Edges, got.Edges)
			assert.Equal(t, def.Config, got.Config)

			// replacing the same id keeps a single entry
			def.Version = 3
			require.NoError(t, stores.Flows.Put(ctx, def))
			got, err = stores.Flows.Get(ctx, "vendor-onboarding")
			require.NoError(t, err)
			assert.Equal(t, 3, got.Version)

			defs, err := stores.Flows.List(ctx)
			require.NoError(t, err)
			assert.Len(t, defs, 1)
		})
	}
}

func TestFlowStoreRejectsInvalidDefinition(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			def := sampleFlow("broken")
			def.Edges = append(def.Edges, flow.Edge{From: "intake", To: "ghost"})
			require.Error(t, stores.Flows.Put(context.Background(), def))

			_, err := stores.Flows.Get(context.Background(), "broken")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestExecutionRepositoryRoundTrip(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			def := sampleFlow("f1")
			rec := flow.NewExecutionRecord(def, flow.Trigger{
				ContextID:   "vendor-7",
				ContextType: "vendor",
				TriggerData: map[string]any{"score": float64(55)},
			})
			require.NoError(t, stores.Executions.Create(ctx, rec))

			rec.Status = flow.ExecStatusCompleted
			rec.NodeResults = []*flow.NodeResult{{
				NodeID:   "intake",
				Status:   flow.NodeStatusCompleted,
				Output:   map[string]any{"ok": true},
				Attempts: 2,
			}}
			require.NoError(t, stores.Executions.Update(ctx, rec))

			got, err := stores.Executions.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, flow.ExecStatusCompleted, got.Status)
			assert.Equal(t, "vendor-7", got.Context["context_id"])
			assert.Equal(t, map[string]any{"score": float64(55)}, got.Context["trigger_data"])
			require.Len(t, got.NodeResults, 1)
			assert.Equal(t, 2, got.NodeResults[0].Attempts)
			assert.Equal(t, map[string]any{"ok": true}, got.NodeResults[0].Output)

			_, err = stores.Executions.Get(ctx, "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestExecutionRepositoryListFilters(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

			seed := []struct {
				flowID string
				status flow.ExecutionStatus
				at     time.Time
			}{
				{"f1", flow.ExecStatusCompleted, base},
				{"f1", flow.ExecStatusFailed, base.Add(time.Hour)},
				{"f2", flow.ExecStatusCompleted, base.Add(2 * time.Hour)},
			}
			for i, s := range seed {
				rec := flow.NewExecutionRecord(&flow.Definition{ID: s.flowID, Version: 1}, flow.Trigger{})
				rec.Status = s.status
				rec.CreatedAt = s.at
				rec.UpdatedAt = s.at
				require.NoError(t, stores.Executions.Create(ctx, rec), "seed %d", i)
			}

			recs, err := stores.Executions.List(ctx, flow.ListFilter{FlowID: "f1"})
			require.NoError(t, err)
			require.Len(t, recs, 2)
			// newest first
			assert.Equal(t, flow.ExecStatusFailed, recs[0].Status)

			recs, err = stores.Executions.List(ctx, flow.ListFilter{Status: flow.ExecStatusCompleted})
			require.NoError(t, err)
			assert.Len(t, recs, 2)

			recs, err = stores.Executions.List(ctx, flow.ListFilter{
				Start: base.Add(30 * time.Minute),
				End:   base.Add(90 * time.Minute),
			})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, flow.ExecStatusFailed, recs[0].Status)

			recs, err = stores.Executions.List(ctx, flow.ListFilter{Limit: 1})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "f2", recs[0].FlowID)
		})
	}
}

func TestMemoryRepositoryIsolation(t *testing.T) {
	repo := NewMemoryExecutionRepository()
	ctx := context.Background()

	rec := flow.NewExecutionRecord(&flow.Definition{ID: "f", Version: 1}, flow.Trigger{ContextID: "c"})
	require.NoError(t, repo.Create(ctx, rec))

	// mutating the caller's record must not affect stored history
	rec.Status = flow.ExecStatusFailed
	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, flow.ExecStatusPending, got.Status)

	// mutating a returned clone must not either
	got.Context["context_id"] = "tampered"
	again, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "c", again.Context["context_id"])

	// duplicate ids are rejected, unknown updates fail
	assert.Error(t, repo.Create(ctx, rec))
	assert.Error(t, repo.Update(ctx, &flow.ExecutionRecord{ID: "ghost"}))
}

func TestNewStoresRejectsUnknownType(t *testing.T) {
	_, err := NewStores(Config{Type: "etcd"}, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
