package router

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/relay/internal/adapter"
	"github.com/roach88/relay/internal/event"
	"github.com/roach88/relay/internal/policy"
	"github.com/roach88/relay/internal/provenance"
	"github.com/roach88/relay/internal/relayerr"
)

// Run executes a request to a terminal state. The returned response
// always carries the run header and summary once the run has started.
// A non-nil error is returned only for bug outcomes (including store
// failures); operational run failures are reported in Response.Error
// with a nil error.
func (r *Router) Run(ctx context.Context, req Request) (*Response, error) {
	mode := req.Mode
	if mode == "" {
		mode = event.ModeDryRun
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid mode: %q", req.Mode)
	}

	runID := req.RunID
	if runID == "" {
		runID = r.newRunID()
	}

	// Cancellation is honored at step boundaries only: an in-flight
	// step must still commit its events, and a cancelled run must
	// still commit its terminal event.
	storeCtx := context.WithoutCancel(ctx)

	run, err := r.store.CreateRun(storeCtx, runID, req.Goal, mode)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	r.log.Info("run started", "run_id", runID, "mode", mode, "goal", req.Goal)

	resp := &Response{
		Run:     run,
		Results: []StepResult{},
		Summary: Summary{StepsTotal: len(req.Plan)},
	}
	started := time.Now()

	if err := r.append(storeCtx, runID, event.TypeRunStarted, map[string]any{
		"goal": req.Goal,
		"mode": string(mode),
	}); err != nil {
		return nil, err
	}

	// Dispatch selection.
	var selected adapter.Adapter
	source := SelectionDefault
	if req.Dispatch != nil && req.Dispatch.AdapterID != "" {
		selected, err = r.registry.Get(req.Dispatch.AdapterID)
		source = SelectionRequest
	} else {
		selected, err = r.registry.GetDefault()
	}
	if err != nil {
		return r.failRun(storeCtx, resp, err)
	}

	caps := selected.Capabilities()
	resp.Dispatch = &DispatchInfo{
		AdapterID:       selected.ID(),
		AdapterKind:     selected.Kind(),
		SelectionSource: source,
	}
	resp.Summary.AdapterID = selected.ID()

	if err := r.append(storeCtx, runID, event.TypeDispatchSelected, map[string]any{
		"adapter_id":       selected.ID(),
		"adapter_kind":     selected.Kind(),
		"capabilities":     caps.Sorted(),
		"selection_source": source,
	}); err != nil {
		return nil, err
	}

	// Capability enforcement.
	for _, c := range requiredCapabilities(req.Dispatch, mode) {
		if caps.Has(c) {
			continue
		}
		opErr := relayerr.Operationalf(relayerr.CodeCapabilityMissing,
			"adapter %s lacks required capability %s", selected.ID(), c).
			WithDetail("adapter_id", selected.ID()).
			WithDetail("required_capability", string(c)).
			WithDetail("adapter_capabilities", caps.Sorted())
		return r.failRun(storeCtx, resp, opErr)
	}

	// Policy gate.
	var pol policy.Policy
	if req.Policy != nil {
		pol = *req.Policy
	}
	if err := pol.Gate(mode, len(req.Plan)); err != nil {
		return r.failRun(storeCtx, resp, err)
	}

	// Duplicate step ids are rejected by schema validation upstream.
	// Reaching here with one is a bug.
	if dup := duplicateStepID(req.Plan); dup != "" {
		bug := relayerr.NewBug(fmt.Sprintf("duplicate step_id in plan: %s", dup))
		if _, err := r.failRun(storeCtx, resp, bug); err != nil {
			return nil, err
		}
		return resp, bug
	}

	planSteps := make([]any, len(req.Plan))
	for i, step := range req.Plan {
		planSteps[i] = redactedStepMap(step)
	}
	if err := r.append(storeCtx, runID, event.TypePlanCreated, map[string]any{
		"steps": planSteps,
	}); err != nil {
		return nil, err
	}

	// Execute loop.
	for _, step := range req.Plan {
		result, bug, err := r.executeStep(ctx, storeCtx, runID, selected, mode, step)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, result)
		if result.Status == StepStatusOK {
			resp.Summary.StepsOK++
		} else {
			resp.Summary.StepsError++
		}
		if bug != nil {
			if _, err := r.failRun(storeCtx, resp, bug); err != nil {
				return nil, err
			}
			resp.Summary.DurationMS = time.Since(started).Milliseconds()
			return resp, bug
		}

		// Cancellation is honored at step boundaries only.
		if ctx.Err() != nil {
			cancelErr := relayerr.NewOperational(relayerr.CodeCancelled,
				"run cancelled by caller").
				WithDetail("after_step", step.StepID)
			return r.failRun(storeCtx, resp, cancelErr)
		}
	}

	resp.Summary.DurationMS = time.Since(started).Milliseconds()
	if err := r.append(storeCtx, runID, event.TypeRunCompleted, map[string]any{
		"summary": map[string]any{
			"adapter_id":  resp.Summary.AdapterID,
			"steps_total": resp.Summary.StepsTotal,
			"steps_ok":    resp.Summary.StepsOK,
			"steps_error": resp.Summary.StepsError,
			"duration_ms": resp.Summary.DurationMS,
		},
	}); err != nil {
		return nil, err
	}
	if err := r.store.SetStatus(storeCtx, runID, event.StatusCompleted); err != nil {
		return nil, fmt.Errorf("set run status: %w", err)
	}
	resp.Run.Status = event.StatusCompleted
	r.log.Info("run completed", "run_id", runID,
		"steps_ok", resp.Summary.StepsOK, "steps_error", resp.Summary.StepsError)

	if err := r.attachProvenance(storeCtx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// executeStep runs one step to STEP_COMPLETED. Operational failures
// are recorded and absorbed; a bug outcome is returned for the caller
// to terminate the run. The error return is reserved for store
// failures.
func (r *Router) executeStep(callCtx, storeCtx context.Context, runID string, a adapter.Adapter, mode event.Mode, step event.Step) (StepResult, error, error) {
	callMap := redactedCallMap(step.Call)

	if err := r.append(storeCtx, runID, event.TypeStepStarted, map[string]any{
		"step_id": step.StepID,
		"intent":  step.Intent,
		"call":    callMap,
	}); err != nil {
		return StepResult{}, nil, err
	}
	if err := r.append(storeCtx, runID, event.TypeToolCallRequested, map[string]any{
		"step_id":              step.StepID,
		"call":                 callMap,
		"adapter_id":           a.ID(),
		"adapter_capabilities": a.Capabilities().Sorted(),
	}); err != nil {
		return StepResult{}, nil, err
	}

	var (
		output     map[string]any
		callErr    error
		durationMS int64
		simulated  = mode == event.ModeDryRun
	)
	if simulated {
		// dry_run never invokes the adapter, even one declaring apply.
		output = map[string]any{
			"simulated":  true,
			"adapter_id": a.ID(),
			"tool":       step.Call.Tool,
			"method":     step.Call.Method,
		}
	} else {
		start := time.Now()
		output, callErr = a.Call(callCtx, step.Call.Tool, step.Call.Method, step.Call.Args)
		durationMS = time.Since(start).Milliseconds()
	}

	result := StepResult{StepID: step.StepID, Simulated: simulated}
	var bug error

	switch {
	case callErr == nil:
		result.Status = StepStatusOK
		result.Output = output
		if err := r.append(storeCtx, runID, event.TypeToolCallSucceeded, map[string]any{
			"step_id":     step.StepID,
			"output":      output,
			"simulated":   simulated,
			"adapter_id":  a.ID(),
			"duration_ms": durationMS,
		}); err != nil {
			return StepResult{}, nil, err
		}

	case relayerr.IsOperational(callErr):
		oe, _ := relayerr.AsOperational(callErr)
		result.Status = StepStatusError
		result.ErrorCode = string(oe.Code)
		r.log.Warn("tool call failed", "run_id", runID, "step_id", step.StepID,
			"error_code", oe.Code)
		if err := r.append(storeCtx, runID, event.TypeToolCallFailed, map[string]any{
			"step_id":     step.StepID,
			"error_kind":  "operational",
			"error_code":  string(oe.Code),
			"message":     adapter.RedactText(oe.Message),
			"details":     adapter.RedactArgs(oe.Details),
			"adapter_id":  a.ID(),
			"duration_ms": durationMS,
		}); err != nil {
			return StepResult{}, nil, err
		}

	default:
		// Bug or unclassified failure. Recorded, then the run
		// terminates and the original error re-surfaces.
		be, ok := relayerr.AsBug(callErr)
		if !ok {
			be = relayerr.WrapUnknown(callErr)
			callErr = be
		}
		result.Status = StepStatusError
		result.ErrorCode = string(be.Code)
		r.log.Error("tool call hit a bug", "run_id", runID, "step_id", step.StepID,
			"error_code", be.Code, "error", callErr)
		if err := r.append(storeCtx, runID, event.TypeToolCallFailed, map[string]any{
			"step_id":     step.StepID,
			"error_kind":  "bug",
			"error_code":  string(be.Code),
			"message":     adapter.RedactText(be.Message),
			"adapter_id":  a.ID(),
			"duration_ms": durationMS,
		}); err != nil {
			return StepResult{}, nil, err
		}
		bug = callErr
	}

	if err := r.append(storeCtx, runID, event.TypeStepCompleted, map[string]any{
		"step_id": step.StepID,
		"status":  result.Status,
	}); err != nil {
		return StepResult{}, nil, err
	}
	return result, bug, nil
}

// failRun appends the terminal RUN_FAILED event and marks the run
// failed. Returns the response with its error block populated.
func (r *Router) failRun(ctx context.Context, resp *Response, cause error) (*Response, error) {
	runID := resp.Run.RunID
	code := relayerr.CodeOf(cause)
	details := adapter.RedactArgs(relayerr.DetailsOf(cause))

	payload := map[string]any{"error_code": string(code)}
	if details != nil {
		payload["details"] = details
	}
	if err := r.append(ctx, runID, event.TypeRunFailed, payload); err != nil {
		return nil, err
	}
	if err := r.store.SetStatus(ctx, runID, event.StatusFailed); err != nil {
		return nil, fmt.Errorf("set run status: %w", err)
	}
	resp.Run.Status = event.StatusFailed
	resp.Error = &ErrorInfo{ErrorCode: string(code), Details: details}
	r.log.Warn("run failed", "run_id", runID, "error_code", code)

	if err := r.attachProvenance(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Router) append(ctx context.Context, runID, eventType string, payload map[string]any) error {
	if _, err := r.store.Append(ctx, runID, eventType, payload); err != nil {
		return fmt.Errorf("append %s: %w", eventType, err)
	}
	return nil
}

func (r *Router) attachProvenance(ctx context.Context, resp *Response) error {
	run, err := r.store.GetRun(ctx, resp.Run.RunID)
	if err != nil {
		return fmt.Errorf("read run for provenance: %w", err)
	}
	events, err := r.store.ReadEvents(ctx, resp.Run.RunID)
	if err != nil {
		return fmt.Errorf("read events for provenance: %w", err)
	}
	prov, err := provenance.Derive(*run, events)
	if err != nil {
		return fmt.Errorf("derive provenance: %w", err)
	}
	resp.Provenance = &prov
	return nil
}

func duplicateStepID(plan []event.Step) string {
	seen := make(map[string]bool, len(plan))
	for _, step := range plan {
		if seen[step.StepID] {
			return step.StepID
		}
		seen[step.StepID] = true
	}
	return ""
}

// redactedCallMap builds the event payload form of a call with
// sensitive argument values removed.
func redactedCallMap(call event.Call) map[string]any {
	return map[string]any{
		"tool":   call.Tool,
		"method": call.Method,
		"args":   redactedArgs(call.Args),
	}
}

func redactedStepMap(step event.Step) map[string]any {
	return map[string]any{
		"step_id": step.StepID,
		"intent":  step.Intent,
		"call":    redactedCallMap(step.Call),
	}
}

func redactedArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return adapter.RedactArgs(args)
}
