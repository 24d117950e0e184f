package hooks

import (
	"context"
	"testing"
)

func TestEvaluateSingleHook_ContainsPassesAndFails(t *testing.T) {
	e := NewEngine()
	gate := HookConfig{Name: "mentions-next-step", Type: "contains", Contains: []string{"next step"}}

	result, err := e.EvaluateSingleHook(context.Background(), gate, HookContext{Content: "here is the next step: ship it"})
	if err != nil || !result.Passed {
		t.Fatalf("expected pass, got passed=%v err=%v", result.Passed, err)
	}

	result, err = e.EvaluateSingleHook(context.Background(), gate, HookContext{Content: "no such thing here"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Passed {
		t.Fatal("expected failure when required content is missing")
	}
	if result.Feedback == "" {
		t.Fatal("expected feedback explaining the miss")
	}
}

func TestEvaluateSingleHook_UnknownTypeErrors(t *testing.T) {
	e := NewEngine()
	_, err := e.EvaluateSingleHook(context.Background(), HookConfig{Type: "llm_judge"}, HookContext{})
	if err == nil {
		t.Fatal("expected error for unregistered evaluator type")
	}
}

func TestDispatch_ModifyingChainsInPriorityOrder(t *testing.T) {
	e := NewEngine()
	e.Register(Registration{
		Config: HookConfig{Name: "second", Event: EventPreTool, Enabled: true, Priority: 2},
		Handle: func(_ context.Context, hctx HookContext, _ HookConfig) (HookContext, error) {
			hctx.Content += "-second"
			return hctx, nil
		},
	})
	e.Register(Registration{
		Config: HookConfig{Name: "first", Event: EventPreTool, Enabled: true, Priority: 1},
		Handle: func(_ context.Context, hctx HookContext, _ HookConfig) (HookContext, error) {
			hctx.Content += "-first"
			return hctx, nil
		},
	})

	out, err := e.Dispatch(context.Background(), EventPreTool, HookContext{Content: "base"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Content != "base-first-second" {
		t.Fatalf("expected priority-ordered chain, got %q", out.Content)
	}
}

func TestDispatch_SyncBlockOnFailureAborts(t *testing.T) {
	e := NewEngine()
	e.Register(Registration{
		Config: HookConfig{Name: "gate", Event: EventOnError, Enabled: true, Strategy: StrategySync, BlockOnFailure: true},
		Handle: func(_ context.Context, hctx HookContext, _ HookConfig) (HookContext, error) {
			return hctx, errBoom
		},
	})

	if _, err := e.Dispatch(context.Background(), EventOnError, HookContext{}); err == nil {
		t.Fatal("expected blocking sync hook to abort dispatch")
	}
}

func TestDispatch_SkipHooksIsNoop(t *testing.T) {
	e := NewEngine()
	called := false
	e.Register(Registration{
		Config: HookConfig{Name: "noisy", Event: EventSessionStart, Enabled: true, Strategy: StrategySync},
		Handle: func(_ context.Context, hctx HookContext, _ HookConfig) (HookContext, error) {
			called = true
			return hctx, nil
		},
	})

	ctx := ContextWithSkipHooks(context.Background())
	if _, err := e.Dispatch(ctx, EventSessionStart, HookContext{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("expected skip-hooks context to prevent dispatch")
	}
}

type testErr string

func (e testErr) Error() string { return string(e) }

const errBoom = testErr("boom")
