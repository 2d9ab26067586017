package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// scriptedModel returns canned assistant messages in order, then repeats
// the last one.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	errs      []error
	calls     int
	binds     int
	bound     []*schema.ToolInfo
}

func (m *scriptedModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not scripted")
}

func (m *scriptedModel) BindTools(tools []*schema.ToolInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binds++
	m.bound = tools
	return nil
}

func toolCallMsg(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func newScriptedEinoLoop(t *testing.T, m *scriptedModel, tools []StepTool) *EinoLoop {
	t.Helper()
	loop := &EinoLoop{
		chatModel: m,
		tools:     tools,
		limits:    LoopLimits{MaxIterations: 25, MaxRetriesPerStep: 3, TotalMaxRetries: 10},
		logger:    func(string) {},
	}
	if err := loop.bindTools(context.Background()); err != nil {
		t.Fatalf("bindTools: %v", err)
	}
	return loop
}

func collectSnapshots(t *testing.T, loop *EinoLoop, userMessage string) ([][]*Step, error) {
	t.Helper()
	var snapshots [][]*Step
	err := loop.Run(context.Background(), userMessage, nil, func(ev StepEvent) {
		snapshot := make([]*Step, len(ev.Steps))
		copy(snapshot, ev.Steps)
		snapshots = append(snapshots, snapshot)
	})
	return snapshots, err
}

func TestLoopDirectAnswerSynthesizesFinalStep(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		{Role: schema.Assistant, Content: "42 open alerts."},
	}}
	loop := newScriptedEinoLoop(t, m, []StepTool{&ThinkTool{}, &FinalAnswerTool{}})

	snapshots, err := collectSnapshots(t, loop, "how many?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snapshots) != 1 || len(snapshots[0]) != 1 {
		t.Fatalf("snapshots = %v", snapshots)
	}

	step := snapshots[0][0]
	if step.Tool.Kind != KindFinalAnswer {
		t.Errorf("kind = %v", step.Tool.Kind)
	}
	if step.InputString("response") != "42 open alerts." {
		t.Errorf("response = %q", step.InputString("response"))
	}
}

func TestLoopExecutesToolsThenFinalAnswer(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		toolCallMsg("call-1", "think", `{"thoughts":"plan the query"}`),
		toolCallMsg("call-2", "final_answer", `{"response":"done"}`),
	}}
	loop := newScriptedEinoLoop(t, m, []StepTool{&ThinkTool{}, &FinalAnswerTool{}})

	snapshots, err := collectSnapshots(t, loop, "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("emitted %d snapshots, want 2", len(snapshots))
	}

	// Snapshots grow and re-deliver earlier steps.
	if len(snapshots[0]) != 1 || len(snapshots[1]) != 2 {
		t.Fatalf("snapshot sizes = %d, %d", len(snapshots[0]), len(snapshots[1]))
	}
	if snapshots[1][0].ID != "call-1" {
		t.Errorf("earlier step not re-delivered: %+v", snapshots[1][0])
	}

	think := snapshots[1][0]
	if think.Tool.Kind != KindThink || think.Err != nil {
		t.Errorf("think step = %+v", think)
	}
	if think.Output == nil || think.Output.ResultText() != "Noted. Proceed with the next action." {
		t.Errorf("think output = %+v", think.Output)
	}

	final := snapshots[1][1]
	if final.Tool.Kind != KindFinalAnswer || final.InputString("response") != "done" {
		t.Errorf("final step = %+v", final)
	}
	if len(m.bound) != 2 {
		t.Errorf("bound %d tool infos, want 2", len(m.bound))
	}
}

func TestLoopUnknownToolBecomesStepError(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		toolCallMsg("call-1", "teleport", `{}`),
		toolCallMsg("call-2", "final_answer", `{"response":"ok"}`),
	}}
	loop := newScriptedEinoLoop(t, m, []StepTool{&ThinkTool{}, &FinalAnswerTool{}})

	snapshots, err := collectSnapshots(t, loop, "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	bad := snapshots[0][0]
	if bad.Err == nil || bad.Err.Message != "unknown tool: teleport" {
		t.Errorf("step error = %+v", bad.Err)
	}
	if bad.Tool.Kind != KindUnknown {
		t.Errorf("kind = %v", bad.Tool.Kind)
	}
}

func TestLoopRetriesModelFailures(t *testing.T) {
	m := &scriptedModel{
		errs: []error{errors.New("rate limited"), errors.New("rate limited")},
		responses: []*schema.Message{
			nil, nil,
			toolCallMsg("call-1", "final_answer", `{"response":"ok"}`),
		},
	}
	loop := newScriptedEinoLoop(t, m, []StepTool{&ThinkTool{}, &FinalAnswerTool{}})

	snapshots, err := collectSnapshots(t, loop, "q")
	if err != nil {
		t.Fatalf("Run should recover from transient failures: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0][0].Tool.Kind != KindFinalAnswer {
		t.Errorf("snapshots = %v", snapshots)
	}
	if m.calls != 3 {
		t.Errorf("model called %d times, want 3", m.calls)
	}
}

func TestLoopConcurrentRunsShareModelWithoutRebinding(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		toolCallMsg("call-1", "final_answer", `{"response":"ok"}`),
	}}
	loop := newScriptedEinoLoop(t, m, []StepTool{&ThinkTool{}, &FinalAnswerTool{}})

	const runs = 8
	errCh := make(chan error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- loop.Run(context.Background(), "q", nil, func(StepEvent) {})
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	}
	// Binding happens once at construction; runs must not mutate the
	// shared model.
	if m.binds != 1 {
		t.Errorf("model bound %d times, want 1", m.binds)
	}
}

func TestLoopExhaustsIterations(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		toolCallMsg("call-x", "think", `{"thoughts":"again"}`),
	}}
	loop := newScriptedEinoLoop(t, m, []StepTool{&ThinkTool{}, &FinalAnswerTool{}})
	loop.limits.MaxIterations = 3

	_, err := collectSnapshots(t, loop, "q")
	if !errors.Is(err, ErrMaxIterations) {
		t.Errorf("err = %v, want ErrMaxIterations", err)
	}
	if m.calls != 3 {
		t.Errorf("model called %d times, want 3", m.calls)
	}
}
