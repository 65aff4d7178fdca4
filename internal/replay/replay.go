// Package replay reconstructs run views from the event log and checks
// the structural invariants every well-formed run must satisfy.
package replay

import (
	"context"
	"fmt"

	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/store"
)

// Violation codes.
const (
	ViolationSeqGap            = "SEQ_NOT_CONTIGUOUS"
	ViolationMissingRunStarted = "MISSING_RUN_STARTED"
	ViolationPlanBeforeStart   = "PLAN_BEFORE_RUN_STARTED"
	ViolationStepPairing       = "STEP_PAIRING"
	ViolationCallOutsideStep   = "TOOL_CALL_OUTSIDE_STEP"
	ViolationTerminalCount     = "TERMINAL_EVENT_COUNT"
	ViolationTerminalNotLast   = "TERMINAL_NOT_LAST"
	ViolationMissingAdapterID  = "MISSING_ADAPTER_ID"
	ViolationAdapterMismatch   = "ADAPTER_MISMATCH"
)

// Violation is one broken invariant, anchored to the first offending
// event where that makes sense.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Seq     int64  `json:"seq"`
}

// StepView is the reconstructed timeline of one step.
type StepView struct {
	StepID   string        `json:"step_id"`
	Intent   string        `json:"intent,omitempty"`
	Status   string        `json:"status,omitempty"`
	Events   []event.Event `json:"events"`
	StartSeq int64         `json:"start_seq"`
	EndSeq   int64         `json:"end_seq"`
}

// View is the reconstructed shape of a run.
type View struct {
	Run         event.Run  `json:"run"`
	Steps       []StepView `json:"steps"`
	EventsTotal int        `json:"events_total"`
	Terminal    string     `json:"terminal,omitempty"`
}

// Result is the outcome of a replay.
type Result struct {
	OK         bool        `json:"ok"`
	Strict     bool        `json:"strict"`
	View       View        `json:"view"`
	Violations []Violation `json:"violations"`
}

// Replay reads a run from the store, rebuilds its view and checks
// invariants. With strict set, any violation makes OK false; without
// it violations are reported but OK stays true.
func Replay(ctx context.Context, s *store.Store, runID string, strict bool) (*Result, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	if run == nil {
		return nil, &store.RunNotFoundError{RunID: runID}
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	violations := CheckEvents(events)
	return &Result{
		OK:         !strict || len(violations) == 0,
		Strict:     strict,
		View:       BuildView(*run, events),
		Violations: violations,
	}, nil
}

// BuildView reconstructs the step timeline from an ordered event list.
func BuildView(run event.Run, events []event.Event) View {
	view := View{Run: run, Steps: []StepView{}, EventsTotal: len(events)}
	index := make(map[string]int)

	for _, evt := range events {
		if evt.Type == event.TypeRunCompleted || evt.Type == event.TypeRunFailed {
			view.Terminal = evt.Type
		}
		stepID := payloadString(evt.Payload, "step_id")
		if stepID == "" {
			continue
		}
		i, ok := index[stepID]
		if !ok {
			i = len(view.Steps)
			index[stepID] = i
			view.Steps = append(view.Steps, StepView{
				StepID:   stepID,
				StartSeq: evt.Seq,
			})
		}
		sv := &view.Steps[i]
		sv.Events = append(sv.Events, evt)
		sv.EndSeq = evt.Seq
		switch evt.Type {
		case event.TypeStepStarted:
			sv.Intent = payloadString(evt.Payload, "intent")
		case event.TypeStepCompleted:
			sv.Status = payloadString(evt.Payload, "status")
		}
	}
	return view
}

// CheckEvents checks the structural invariants of one run's ordered
// event list. Pure; usable against store reads and bundle contents
// alike.
func CheckEvents(events []event.Event) []Violation {
	var violations []Violation
	add := func(seq int64, code, format string, args ...any) {
		violations = append(violations, Violation{
			Code:    code,
			Message: fmt.Sprintf(format, args...),
			Seq:     seq,
		})
	}

	// Contiguous 0-based sequence.
	for i, evt := range events {
		if evt.Seq != int64(i) {
			add(evt.Seq, ViolationSeqGap,
				"event %d has seq %d, want %d", i, evt.Seq, i)
		}
	}

	// Exactly one RUN_STARTED, at seq 0.
	startCount := 0
	for _, evt := range events {
		if evt.Type == event.TypeRunStarted {
			startCount++
		}
	}
	if len(events) == 0 || events[0].Type != event.TypeRunStarted || startCount != 1 {
		add(0, ViolationMissingRunStarted,
			"expected exactly one RUN_STARTED at seq 0, found %d", startCount)
	}

	// PLAN_CREATED after RUN_STARTED.
	for i, evt := range events {
		if evt.Type == event.TypePlanCreated && i == 0 {
			add(evt.Seq, ViolationPlanBeforeStart, "PLAN_CREATED before RUN_STARTED")
		}
	}

	checkTerminal(events, add)
	checkSteps(events, add)
	checkDispatch(events, add)

	return violations
}

func checkTerminal(events []event.Event, add func(int64, string, string, ...any)) {
	terminals := 0
	lastTerminalIdx := -1
	for i, evt := range events {
		if event.IsTerminal(evt.Type) {
			terminals++
			lastTerminalIdx = i
		}
	}
	if terminals != 1 {
		add(int64(len(events)-1), ViolationTerminalCount,
			"expected exactly one terminal event, found %d", terminals)
		return
	}
	if lastTerminalIdx != len(events)-1 {
		add(events[lastTerminalIdx].Seq, ViolationTerminalNotLast,
			"terminal event at seq %d is not last", events[lastTerminalIdx].Seq)
	}
}

type stepTrace struct {
	started   int
	completed int
	startSeq  int64
	endSeq    int64
	calls     []int64
}

func checkSteps(events []event.Event, add func(int64, string, string, ...any)) {
	steps := make(map[string]*stepTrace)
	var order []string
	trace := func(stepID string) *stepTrace {
		st, ok := steps[stepID]
		if !ok {
			st = &stepTrace{startSeq: -1, endSeq: -1}
			steps[stepID] = st
			order = append(order, stepID)
		}
		return st
	}

	for _, evt := range events {
		stepID := payloadString(evt.Payload, "step_id")
		if stepID == "" {
			continue
		}
		st := trace(stepID)
		switch evt.Type {
		case event.TypeStepStarted:
			st.started++
			st.startSeq = evt.Seq
		case event.TypeStepCompleted:
			st.completed++
			st.endSeq = evt.Seq
		case event.TypeToolCallRequested, event.TypeToolCallSucceeded, event.TypeToolCallFailed:
			st.calls = append(st.calls, evt.Seq)
			if payloadString(evt.Payload, "adapter_id") == "" && evt.Type == event.TypeToolCallRequested {
				add(evt.Seq, ViolationMissingAdapterID,
					"TOOL_CALL_REQUESTED for step %s missing adapter_id", stepID)
			}
			if evt.Type == event.TypeToolCallRequested {
				if _, ok := evt.Payload["adapter_capabilities"]; !ok {
					add(evt.Seq, ViolationMissingAdapterID,
						"TOOL_CALL_REQUESTED for step %s missing adapter_capabilities", stepID)
				}
			}
		}
	}

	for _, stepID := range order {
		st := steps[stepID]
		if st.started != 1 || st.completed != 1 {
			add(st.startSeq, ViolationStepPairing,
				"step %s has %d STEP_STARTED and %d STEP_COMPLETED, want one of each",
				stepID, st.started, st.completed)
			continue
		}
		for _, seq := range st.calls {
			if seq <= st.startSeq || seq >= st.endSeq {
				add(seq, ViolationCallOutsideStep,
					"tool call at seq %d for step %s outside [%d, %d]",
					seq, stepID, st.startSeq, st.endSeq)
			}
		}
	}
}

func checkDispatch(events []event.Event, add func(int64, string, string, ...any)) {
	selected := ""
	for _, evt := range events {
		switch evt.Type {
		case event.TypeDispatchSelected:
			selected = payloadString(evt.Payload, "adapter_id")
		case event.TypeToolCallRequested:
			if selected == "" {
				continue
			}
			if got := payloadString(evt.Payload, "adapter_id"); got != "" && got != selected {
				add(evt.Seq, ViolationAdapterMismatch,
					"TOOL_CALL_REQUESTED adapter %s differs from selected %s", got, selected)
			}
		}
	}
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}
