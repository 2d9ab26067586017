package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ThinkTool gives the model a scratchpad step. The thought itself is the
// payload; execution just acknowledges it so the loop can move on.
type ThinkTool struct{}

// Kind identifies the tool variant.
func (t *ThinkTool) Kind() ToolKind { return KindThink }

// Name returns the tool name the model calls.
func (t *ThinkTool) Name() string { return KindThink.String() }

func (t *ThinkTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Use this tool to reason about the user's request and plan the next action " +
			"before calling other tools. Always think first.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"thoughts": {
				Type:     schema.String,
				Desc:     "Your reasoning about what to do next.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun satisfies the eino tool contract.
func (t *ThinkTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	out, err := t.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return out.ResultText(), nil
}

// Run acknowledges the thought.
func (t *ThinkTool) Run(ctx context.Context, argumentsJSON string) (StepOutput, error) {
	var in struct {
		Thoughts string `json:"thoughts"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &in); err != nil {
		return nil, fmt.Errorf("invalid input: %v", err)
	}
	return &ThinkOutput{Result: "Noted. Proceed with the next action."}, nil
}

// FinalAnswerTool is the terminal step of a run. It never executes
// anything; the orchestrator intercepts it, resolves file references in
// the response and emits the final message.
type FinalAnswerTool struct{}

// Kind identifies the tool variant.
func (t *FinalAnswerTool) Kind() ToolKind { return KindFinalAnswer }

// Name returns the tool name the model calls.
func (t *FinalAnswerTool) Name() string { return KindFinalAnswer.String() }

func (t *FinalAnswerTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Call this when you have everything you need to answer the user. " +
			"The response is delivered to the user verbatim (file references are resolved automatically).",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"response": {
				Type:     schema.String,
				Desc:     "The complete final answer for the user.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun satisfies the eino tool contract.
func (t *FinalAnswerTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	out, err := t.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return out.ResultText(), nil
}

// Run echoes the response; the orchestrator never actually dispatches a
// final_answer step to tool execution.
func (t *FinalAnswerTool) Run(ctx context.Context, argumentsJSON string) (StepOutput, error) {
	var in struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &in); err != nil {
		return nil, fmt.Errorf("invalid input: %v", err)
	}
	return &ThinkOutput{Result: in.Response}, nil
}
