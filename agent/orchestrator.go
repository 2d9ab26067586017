package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoFinalAnswer is returned when the reasoning loop finished without
// ever producing a terminal answer step.
var ErrNoFinalAnswer = errors.New("run finished without a final answer")

// ConversationStore persists conversation history per thread.
type ConversationStore interface {
	AppendMessage(ctx context.Context, threadID string, msg Message) error
	Messages(ctx context.Context, threadID string) ([]Message, error)
}

// EventSink receives trajectory events as the run progresses.
type EventSink func(TrajectoryEvent)

// FinalMessage is the terminal result of a run: the resolved answer text
// plus any files to deliver as downloadable attachments.
type FinalMessage struct {
	Text        string
	Attachments []*PlatformFile
}

// Orchestrator runs one chat turn end to end: persist the incoming
// message, replay history into the reasoning loop, dedup and render its
// step snapshots into trajectory events, and resolve file references in
// the final answer.
type Orchestrator struct {
	loop     ReasoningLoop
	store    ConversationStore
	resolver *FileReferenceResolver
	renderer *TrajectoryRenderer
	logger   func(string)
}

// NewOrchestrator wires the run pipeline.
func NewOrchestrator(loop ReasoningLoop, store ConversationStore, resolver *FileReferenceResolver, renderer *TrajectoryRenderer) *Orchestrator {
	return &Orchestrator{
		loop:     loop,
		store:    store,
		resolver: resolver,
		renderer: renderer,
		logger:   func(string) {},
	}
}

// SetLogger sets the debug logging function.
func (o *Orchestrator) SetLogger(logger func(string)) {
	if logger != nil {
		o.logger = logger
	}
}

// HandleMessage processes one user message on a thread. Trajectory
// events stream to sink while the run is live; the returned FinalMessage
// is produced only after the loop terminates with a final answer.
func (o *Orchestrator) HandleMessage(ctx context.Context, threadID, userMessage string, sink EventSink) (*FinalMessage, error) {
	history, err := o.store.Messages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %v", err)
	}

	userMsg := Message{ID: uuid.NewString(), Role: "user", Content: userMessage}
	if err := o.store.AppendMessage(ctx, threadID, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %v", err)
	}

	rc := NewRunContext(threadID, history)

	answerText := ""
	answered := false

	emit := func(event StepEvent) {
		// Snapshots re-deliver earlier steps; only first arrivals count.
		for _, step := range event.Steps {
			if !rc.MarkProcessed(step.ID) {
				continue
			}

			if step.Tool != nil && step.Tool.Kind == KindFinalAnswer {
				answerText = step.InputString("response")
				answered = true
				continue
			}

			for _, ev := range o.renderer.Render(rc, step) {
				sink(ev)
			}
		}
	}

	if err := o.loop.Run(ctx, userMessage, history, emit); err != nil {
		if errors.Is(err, ErrMaxIterations) {
			return nil, ErrNoFinalAnswer
		}
		return nil, err
	}
	if !answered {
		return nil, ErrNoFinalAnswer
	}

	resolvedText, attachments := o.resolver.Resolve(ctx, answerText, rc.GeneratedFiles())
	o.logger(fmt.Sprintf("[orchestrator] thread %s: %d generated file(s), %d attachment(s)",
		threadID, len(rc.GeneratedFiles()), len(attachments)))

	assistantMsg := Message{ID: uuid.NewString(), Role: "assistant", Content: resolvedText}
	if err := o.store.AppendMessage(ctx, threadID, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %v", err)
	}

	return &FinalMessage{Text: resolvedText, Attachments: attachments}, nil
}
