// Package agentcore implements the agent orchestrator: the loop that
// interleaves knowledge retrieval, model inference, and tool dispatch,
// emitting either incremental deltas (RunDelta) or finalized messages
// (Run) until the assistant finishes a turn without requesting a tool
// call.
//
// The phase machine (retrieve → stream → execute tools → continue or
// complete) follows a channel-streaming idiom, with a simpler ownership
// model: one Agent owns its tools and knowledge directly and dispatches
// tool calls strictly sequentially rather than through a bounded-
// concurrency fan-out; that pattern instead belongs to the cache
// engine's concurrent downloads.
package agentcore

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ailoy-go/ailoy/internal/jobs"
	"github.com/ailoy-go/ailoy/internal/knowledge"
	"github.com/ailoy-go/ailoy/internal/tool"
	"github.com/ailoy-go/ailoy/internal/tools/policy"
	"github.com/ailoy-go/ailoy/internal/value"
)

// Model is the tagged-variant seam the orchestrator calls through: a
// small interface at the top-level entry point, with trait-object-style
// polymorphism reserved for the user-extensible pieces (tools, custom
// models). localmodel.LocalLM and each remotemodel dialect satisfy this
// shape directly once their own Config is bound; see ModelFunc for the
// adapter that does the binding.
type Model interface {
	InferDelta(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document) (<-chan value.MessageDeltaOutput, error)
}

// ModelFunc adapts a plain function to Model, the shape a caller gets by
// partially applying localmodel.LocalLM.InferDelta or a remotemodel
// dialect's InferDelta with its own Config already bound.
type ModelFunc func(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document) (<-chan value.MessageDeltaOutput, error)

func (f ModelFunc) InferDelta(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document) (<-chan value.MessageDeltaOutput, error) {
	return f(ctx, messages, tools, docs)
}

// Config configures one Agent run.
type Config struct {
	// Knowledge configures the retrieval step run before each model call.
	Knowledge knowledge.Config
}

// Agent drives the retrieve → infer → dispatch-tools loop. It
// exclusively owns its tool registry and knowledge handle; Model is
// shared across clones, the Go-terms equivalent of a reference-counted
// handle to the same backend.
type Agent struct {
	model     Model
	tools     *tool.Registry
	knowledge *knowledge.Retriever
	logger    *slog.Logger

	// policyResolver/toolPolicy gate the tool surface, consulted once
	// when a descriptor snapshot is taken and again before each dispatch.
	// Both nil means every registered tool is exposed and dispatchable.
	policyResolver *policy.Resolver
	toolPolicy     *policy.Policy

	// jobStore/asyncTools implement fire-and-forget dispatch: a tool name
	// present in asyncTools gets an immediate Tool acknowledgement
	// message carrying a job id, with the call itself run in the
	// background and its outcome tracked in jobStore.
	jobStore   jobs.Store
	asyncTools map[string]bool
}

// New constructs an Agent around a model backend. A nil tools registry is
// replaced with an empty one; retriever may be nil (no knowledge handle).
func New(model Model, tools *tool.Registry, retriever *knowledge.Retriever, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if tools == nil {
		tools = tool.NewRegistry(logger)
	}
	return &Agent{model: model, tools: tools, knowledge: retriever, logger: logger.With("component", "agent")}
}

// WithPolicy attaches a tool authorization policy: resolver expands
// groups/wildcards and p is the profile+allow/deny list consulted before
// a tool descriptor is exposed and again before it is dispatched. It
// returns a, so WithPolicy can chain directly off New.
func (a *Agent) WithPolicy(resolver *policy.Resolver, p *policy.Policy) *Agent {
	a.policyResolver = resolver
	a.toolPolicy = p
	return a
}

// WithJobs attaches an async job store and the set of tool names that
// dispatch through it. names matches by descriptor name only; wildcard
// tool patterns from the policy layer do not apply here.
func (a *Agent) WithJobs(store jobs.Store, names ...string) *Agent {
	a.jobStore = store
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	a.asyncTools = set
	return a
}

// Tools returns the registry AddTool/RemoveTool mutate. RunDelta and Run
// read descriptors from this registry before every model call and
// dispatch tool calls against it as it stands at dispatch time; an
// in-flight run is not isolated from mutations, which take effect from
// the next model call or dispatch onward.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// Clone returns a new Agent sharing the same model handle but owning an
// independent copy of the tool list: different runs on the same Agent
// can be cheaply parallelized by cloning, since they share the model
// handle but own independent tool lists and message histories.
func (a *Agent) Clone() *Agent {
	clone := tool.NewRegistry(a.logger)
	for _, t := range a.tools.List() {
		clone.AddTool(t)
	}
	return &Agent{
		model:          a.model,
		tools:          clone,
		knowledge:      a.knowledge,
		logger:         a.logger,
		policyResolver: a.policyResolver,
		toolPolicy:     a.toolPolicy,
		jobStore:       a.jobStore,
		asyncTools:     a.asyncTools,
	}
}

// retrievalQuery builds the retrieval trigger from the last message's
// text parts, only when that message's role is User.
func retrievalQuery(messages []value.Message) (string, bool) {
	if len(messages) == 0 {
		return "", false
	}
	last := messages[len(messages)-1]
	if last.Role != value.RoleUser {
		return "", false
	}
	var parts []string
	for _, p := range last.Contents {
		if p.Kind() != value.PartKindText {
			continue
		}
		if t, ok := p.Text(); ok {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n\n"), true
}

func (a *Agent) retrieveDocs(ctx context.Context, messages []value.Message, cfg Config) ([]value.Document, error) {
	if a.knowledge == nil {
		return nil, nil
	}
	query, ok := retrievalQuery(messages)
	if !ok {
		return nil, nil
	}
	docs, err := a.knowledge.Retrieve(ctx, query, cfg.Knowledge)
	if err != nil {
		return nil, &RetrievalError{Cause: err}
	}
	return docs, nil
}

// filterDescriptors snapshots the tool descriptors, filtered by policy if
// attached: with no policy attached every descriptor is exposed,
// otherwise only the names the resolver allows survive, in their
// original registration order.
func (a *Agent) filterDescriptors(all []value.ToolDesc) []value.ToolDesc {
	if a.policyResolver == nil {
		return all
	}
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	allowed := a.policyResolver.FilterAllowed(a.toolPolicy, names)
	allowedSet := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		allowedSet[n] = true
	}
	out := make([]value.ToolDesc, 0, len(allowed))
	for _, d := range all {
		if allowedSet[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// checkToolAllowed re-consults the policy at dispatch time, since tool
// mutations between the snapshot and the dispatch could otherwise let a
// since-denied tool run.
func (a *Agent) checkToolAllowed(name string) error {
	if a.policyResolver == nil {
		return nil
	}
	if !a.policyResolver.IsAllowed(a.toolPolicy, name) {
		return &PolicyDeniedError{Tool: name}
	}
	return nil
}

// dispatchTool runs name through the registry after a fresh policy check,
// or, if name is registered as async, creates a Job, starts the call in
// the background, and returns an immediate acknowledgement value instead
// of the call's eventual result.
//
// An argument-validation failure is not a run-ending error: the model
// supplied arguments the schema rejects, which is recoverable by
// retrying with corrected arguments, unlike an unknown tool name or a
// genuine exception inside the tool's own closure. It is folded into a
// normal result value instead of being returned as an error, the same
// shape a failed MCP call already takes (is_error plus a message), so
// both dispatch paths converge on one error-result convention.
func (a *Agent) dispatchTool(ctx context.Context, name string, args value.Value) (value.Value, error) {
	if err := a.checkToolAllowed(name); err != nil {
		return value.Value{}, err
	}
	if a.jobStore != nil && a.asyncTools[name] {
		return a.dispatchAsyncTool(ctx, name, args)
	}
	result, err := a.tools.Run(ctx, name, args)
	if err != nil {
		var verr *tool.ValidationError
		if errors.As(err, &verr) {
			return validationErrorResult(verr), nil
		}
		return value.Value{}, err
	}
	return result, nil
}

// validationErrorResult builds the Tool-result value a validation failure
// surfaces to the model, so it can see the complaint and retry.
func validationErrorResult(err error) value.Value {
	m := value.NewMap()
	m.Set("is_error", value.Bool(true))
	m.Set("error", value.String(err.Error()))
	return value.FromMap(m)
}

func roleRef(r value.Role) *value.Role { return &r }

func finishRef(f value.FinishReason) *value.FinishReason { return &f }

// RetrievalError wraps a failure from the knowledge handle during step 1.
type RetrievalError struct{ Cause error }

func (e *RetrievalError) Error() string { return "agentcore: retrieve: " + e.Cause.Error() }
func (e *RetrievalError) Unwrap() error  { return e.Cause }

// AggregationError wraps a failure to finish an accumulated delta into a
// Message: a conflicting role/id across deltas, or malformed JSON in
// tool arguments at finish.
type AggregationError struct{ Cause error }

func (e *AggregationError) Error() string { return "agentcore: aggregate: " + e.Cause.Error() }
func (e *AggregationError) Unwrap() error  { return e.Cause }

// ToolError wraps a failed tool dispatch. An unknown tool name or a
// genuine exception from the tool's own code is fatal to the run; an
// argument-validation failure is not — dispatchTool converts those into
// a Tool result instead of reaching this type.
type ToolError struct {
	Tool  string
	Cause error
}

func (e *ToolError) Error() string { return "agentcore: tool " + e.Tool + ": " + e.Cause.Error() }
func (e *ToolError) Unwrap() error  { return e.Cause }

// PolicyDeniedError is returned when a tool dispatch is rejected by the
// authorization policy attached with WithPolicy.
type PolicyDeniedError struct{ Tool string }

func (e *PolicyDeniedError) Error() string { return "agentcore: tool denied by policy: " + e.Tool }

// IncompleteStreamError is returned when a model's InferDelta stream
// closes without ever delivering a terminal finish reason — the backend
// failed silently, which is treated as fatal to the generation.
type IncompleteStreamError struct{}

func (e *IncompleteStreamError) Error() string {
	return "agentcore: model stream ended without a finish reason"
}
