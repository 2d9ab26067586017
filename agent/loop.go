package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"aiopschat/config"
)

// ErrMaxIterations is returned by a reasoning loop that exhausted its
// iteration or retry budget before producing a terminal answer.
var ErrMaxIterations = errors.New("reasoning loop exhausted its iteration budget without a final answer")

// StepEvent is one event yielded by the reasoning loop. Steps is the
// full growing snapshot of the run so far, not a diff: the same step can
// appear in many consecutive events. Consumers must deduplicate by ID.
type StepEvent struct {
	Steps []*Step
}

// ReasoningLoop drives the agent's planning/tool-selection algorithm.
// It is an external collaborator: the orchestrator only consumes its
// step events and does not care how steps are produced.
type ReasoningLoop interface {
	Run(ctx context.Context, userMessage string, history []Message, emit func(StepEvent)) error
}

// LoopLimits bound a single run.
type LoopLimits struct {
	MaxIterations     int
	MaxRetriesPerStep int
	TotalMaxRetries   int
}

// EinoLoop is a ReasoningLoop on top of a cloudwego/eino chat model:
// bind tool infos, generate, execute tool calls, feed results back,
// repeat until the model calls final_answer or the budget runs out.
type EinoLoop struct {
	chatModel model.ChatModel
	tools     []StepTool
	limits    LoopLimits
	logger    func(string)
}

// NewEinoLoop builds the loop with an OpenAI-compatible chat model.
func NewEinoLoop(ctx context.Context, cfg config.Config, tools []StepTool) (*EinoLoop, error) {
	maxTokens := cfg.MaxTokens
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:    cfg.LLMAPIKey,
		BaseURL:   cfg.LLMBaseURL,
		Model:     cfg.LLMModelName,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model: %v", err)
	}

	loop := &EinoLoop{
		chatModel: chatModel,
		tools:     tools,
		limits: LoopLimits{
			MaxIterations:     cfg.MaxIterations,
			MaxRetriesPerStep: cfg.MaxRetriesPerStep,
			TotalMaxRetries:   cfg.TotalMaxRetries,
		},
		logger: func(string) {},
	}
	if err := loop.bindTools(ctx); err != nil {
		return nil, err
	}
	return loop, nil
}

// bindTools binds the tool set to the chat model. The set is fixed at
// construction and the binding mutates the model, so this must happen
// exactly once, before the loop is shared across requests.
func (l *EinoLoop) bindTools(ctx context.Context) error {
	infos := make([]*schema.ToolInfo, 0, len(l.tools))
	for _, t := range l.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	if err := l.chatModel.BindTools(infos); err != nil {
		return fmt.Errorf("failed to bind tools: %v", err)
	}
	return nil
}

// SetLogger sets the debug logging function.
func (l *EinoLoop) SetLogger(logger func(string)) {
	if logger != nil {
		l.logger = logger
	}
}

func (l *EinoLoop) toolByName(name string) StepTool {
	for _, t := range l.tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// Run executes the loop. The emitted snapshots grow by one or more steps
// per iteration and always include every previous step.
func (l *EinoLoop) Run(ctx context.Context, userMessage string, history []Message, emit func(StepEvent)) error {
	messages := []*schema.Message{{Role: schema.System, Content: SystemPrompt()}}
	for _, m := range history {
		role := schema.User
		if m.Role == "assistant" {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: userMessage})

	var steps []*Step
	totalRetries := 0

	for iteration := 0; iteration < l.limits.MaxIterations; iteration++ {
		msg, err := l.generateWithRetry(ctx, messages, &totalRetries)
		if err != nil {
			return err
		}
		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			// The model answered directly. Treat the content as the
			// terminal answer so the run still completes cleanly.
			steps = append(steps, &Step{
				ID:    uuid.NewString(),
				Tool:  &ToolRef{Kind: KindFinalAnswer, Name: KindFinalAnswer.String()},
				Input: map[string]interface{}{"response": msg.Content},
			})
			emit(StepEvent{Steps: steps})
			return nil
		}

		done := false
		for _, call := range msg.ToolCalls {
			step := l.executeToolCall(ctx, call)
			steps = append(steps, step)

			if step.Tool.Kind == KindFinalAnswer {
				done = true
				break
			}

			content := ""
			if step.Err != nil {
				content = step.Err.Message
			} else if step.Output != nil {
				content = step.Output.ResultText()
			}
			messages = append(messages, &schema.Message{
				Role:       schema.Tool,
				Content:    content,
				ToolCallID: call.ID,
			})
		}

		// Re-emit the whole snapshot; the orchestrator dedups by step ID.
		emit(StepEvent{Steps: steps})

		if done {
			return nil
		}
	}

	return ErrMaxIterations
}

// generateWithRetry calls the model, retrying transient failures within
// the per-step and total retry budgets.
func (l *EinoLoop) generateWithRetry(ctx context.Context, messages []*schema.Message, totalRetries *int) (*schema.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= l.limits.MaxRetriesPerStep; attempt++ {
		if attempt > 0 {
			if *totalRetries >= l.limits.TotalMaxRetries {
				return nil, fmt.Errorf("%w: %v", ErrMaxIterations, lastErr)
			}
			*totalRetries++
		}

		msg, err := l.chatModel.Generate(ctx, messages)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		l.logger(fmt.Sprintf("[loop] model generate attempt %d failed: %v", attempt+1, err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("model invocation failed after retries: %v", lastErr)
}

// executeToolCall turns one model tool call into a Step, running the
// tool unless it is the terminal final_answer marker. Tool failures are
// captured on the step, never returned: they become error trajectory
// events and the model gets a chance to recover.
func (l *EinoLoop) executeToolCall(ctx context.Context, call schema.ToolCall) *Step {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}

	name := call.Function.Name
	step := &Step{
		ID:    id,
		Tool:  &ToolRef{Kind: KindForTool(name), Name: name},
		Input: parseArguments(call.Function.Arguments),
	}

	if step.Tool.Kind == KindFinalAnswer {
		return step
	}

	toolImpl := l.toolByName(name)
	if toolImpl == nil {
		step.Err = &StepError{Message: fmt.Sprintf("unknown tool: %s", name)}
		return step
	}

	out, err := toolImpl.Run(ctx, call.Function.Arguments)
	if err != nil {
		step.Err = &StepError{Message: err.Error()}
		return step
	}
	step.Output = out
	return step
}

// parseArguments decodes the tool-call argument JSON into the step's
// input mapping. Malformed arguments yield an empty map; the tool itself
// reports the parse error.
func parseArguments(argumentsJSON string) map[string]interface{} {
	input := make(map[string]interface{})
	if argumentsJSON == "" {
		return input
	}
	json.Unmarshal([]byte(argumentsJSON), &input)
	return input
}
