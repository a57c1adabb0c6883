package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/golovatskygroup/compliance-mcp/internal/audit"
	"github.com/golovatskygroup/compliance-mcp/internal/logging"
	"github.com/golovatskygroup/compliance-mcp/internal/metrics"
	"github.com/golovatskygroup/compliance-mcp/internal/upstream"
)

// Report is the rendered result of one invocation. Err is set when the text is
// an error report.
type Report struct {
	Tool string
	Text string
	Err  *upstream.Error
}

func (r Report) Failed() bool { return r.Err != nil }

// Journal receives one entry per completed invocation.
type Journal interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Dispatcher validates calls, fetches their payloads and renders reports. It
// holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	fetcher Fetcher
	schemas map[string]*jsonschema.Schema
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	journal Journal
}

type Option func(*Dispatcher)

// WithClock sets the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logging.Component(logger, "dispatcher") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithJournal records every invocation in j.
func WithJournal(j Journal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

// NewDispatcher compiles the input schema of every registered tool.
func NewDispatcher(fetcher Fetcher, opts ...Option) (*Dispatcher, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("dispatcher: nil fetcher")
	}
	d := &Dispatcher{
		fetcher: fetcher,
		schemas: make(map[string]*jsonschema.Schema, len(descriptors)),
		now:     time.Now,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, desc := range descriptors {
		s, err := jsonschema.CompileString(desc.Name+".json", string(desc.InputSchema()))
		if err != nil {
			return nil, fmt.Errorf("invalid input schema for %s: %w", desc.Name, err)
		}
		d.schemas[desc.Name] = s
	}
	return d, nil
}

// Tools lists the registered tools.
func (d *Dispatcher) Tools() []ToolDescriptor { return Tools() }

// InvokeJSON decodes raw JSON arguments and invokes the tool. Empty or null
// arguments are treated as an empty object.
func (d *Dispatcher) InvokeJSON(ctx context.Context, name string, raw json.RawMessage) (Report, error) {
	if _, ok := Lookup(name); !ok {
		return Report{}, &UnknownToolError{Name: name, Suggestions: Suggest(name)}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Report{}, &InvalidArgumentsError{Tool: name, Reason: err.Error()}
	}
	args, err := d.validate(name, decoded)
	if err != nil {
		return Report{}, err
	}
	return d.dispatch(ctx, ToolCall{Name: name, Arguments: args})
}

// Invoke runs one tool call. Unknown tools and invalid arguments are returned as
// errors; upstream failures come back as error reports.
func (d *Dispatcher) Invoke(ctx context.Context, call ToolCall) (Report, error) {
	if _, ok := Lookup(call.Name); !ok {
		return Report{}, &UnknownToolError{Name: call.Name, Suggestions: Suggest(call.Name)}
	}
	instance := make(map[string]any, len(call.Arguments))
	for k, v := range call.Arguments {
		instance[k] = v
	}
	args, err := d.validate(call.Name, instance)
	if err != nil {
		return Report{}, err
	}
	call.Arguments = args
	return d.dispatch(ctx, call)
}

// validate checks instance against the tool's schema and returns the declared
// string arguments. Undeclared members are dropped.
func (d *Dispatcher) validate(name string, instance any) (map[string]string, error) {
	if err := d.schemas[name].Validate(instance); err != nil {
		return nil, &InvalidArgumentsError{Tool: name, Reason: describeValidation(err)}
	}
	obj, _ := instance.(map[string]any)
	desc, _ := Lookup(name)
	args := make(map[string]string, len(desc.Parameters))
	for _, p := range desc.Parameters {
		if s, ok := obj[p.Name].(string); ok {
			args[p.Name] = s
		}
	}
	return args, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, call ToolCall) (Report, error) {
	start := time.Now()
	res := d.fetcher.Fetch(ctx, call)
	rep := d.render(call, res, d.now())
	elapsed := time.Since(start)

	outcome := "ok"
	if rep.Err != nil {
		outcome = string(rep.Err.Kind)
		d.logger.Warn("tool call failed", "tool", call.Name, "kind", rep.Err.Kind, "error", rep.Err.Message, "duration", elapsed)
	} else {
		d.logger.Info("tool call", "tool", call.Name, "duration", elapsed)
	}
	d.metrics.ObserveTool(call.Name, outcome, elapsed)

	if d.journal != nil {
		entry := audit.Entry{
			Tool:      call.Name,
			Arguments: call.Arguments,
			Outcome:   outcome,
			Duration:  elapsed,
		}
		if rep.Err != nil {
			entry.Message = rep.Err.Message
		}
		if err := d.journal.Record(ctx, entry); err != nil {
			d.logger.Warn("audit record failed", "tool", call.Name, "error", err)
		}
	}
	return rep, nil
}

func (d *Dispatcher) render(call ToolCall, res upstream.Result, now time.Time) Report {
	rep := Report{Tool: call.Name}
	switch call.Name {
	case ToolAnalyzeTransaction:
		o := Decode[TransactionAnalysis](res)
		rep.Text, rep.Err = RenderTransactionAnalysis(call.Arg("transaction_id"), o, now), o.Err
	case ToolVerifyCustomerKYC:
		o := Decode[KYCVerification](res)
		rep.Text, rep.Err = RenderKYCVerification(call.Arg("customer_id"), o, now), o.Err
	case ToolAnalyzeCommunication:
		o := Decode[CommunicationAnalysis](res)
		rep.Text, rep.Err = RenderCommunicationAnalysis(call.Arg("communication_id"), o, now), o.Err
	case ToolGetRegulatoryUpdates:
		o := Decode[RegulatoryUpdates](res)
		rep.Text, rep.Err = RenderRegulatoryUpdates(o, now), o.Err
	case ToolGenerateComplianceReport:
		o := Decode[ComplianceReport](res)
		rep.Text, rep.Err = RenderComplianceReport(call.Arg("entity_id"), call.Arg("report_type"), o, now), o.Err
	}
	return rep
}
