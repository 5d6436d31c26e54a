package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/varactor/squawk/internal/dropdir"
	"github.com/varactor/squawk/internal/lockfile"
	"github.com/varactor/squawk/internal/observe"
	"github.com/varactor/squawk/internal/persona"
	"github.com/varactor/squawk/internal/tools"
	"github.com/varactor/squawk/pkg/provider/llm"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultPollInterval        = time.Second
	DefaultHistoryLimit        = 20
	DefaultHistoryExpiration   = 5 * time.Minute
	DefaultConversationTimeout = 5 * time.Minute
	DefaultQueueSize           = 100
)

const appendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// Response is one generated reply ready for synthesis and playback.
type Response struct {
	// Text is the reply to speak.
	Text string

	// Voice is the synthesis voice identity for the responding persona.
	Voice string

	// Persona is the responding persona's name.
	Persona string
}

// Archiver persists exchanges to durable storage beyond the flat-file log.
// *archive.Store satisfies this.
type Archiver interface {
	Record(ctx context.Context, profile, persona, transcription, response string, at time.Time) error
}

// Config wires an Engine's collaborators and tuning.
type Config struct {
	// Store is the drop directory the engine polls.
	Store *dropdir.Store

	// Profile holds the loaded personas.
	Profile *persona.Profile

	// Registry holds the tools personas may call. May be nil.
	Registry *tools.Registry

	// LLM is the completion collaborator.
	LLM llm.Provider

	// Lock is the playback lock; while held, poll ticks are skipped.
	Lock *lockfile.Lock

	// TTSProvider names the active synthesis backend, used to resolve each
	// persona's voice.
	TTSProvider string

	// Fs backs the conversation log. Defaults to the OS filesystem.
	Fs afero.Fs

	// ConversationLog is the flat-file exchange log path. Empty disables it.
	ConversationLog string

	// Archiver optionally mirrors exchanges into durable storage. May be
	// nil.
	Archiver Archiver

	// Metrics receives pipeline instrumentation. Defaults to
	// observe.DefaultMetrics().
	Metrics *observe.Metrics

	PollInterval        time.Duration
	HistoryLimit        int
	HistoryExpiration   time.Duration
	ConversationTimeout time.Duration
	QueueSize           int

	// Picker overrides the random persona fallback, see WithPicker.
	Picker func(n int) int
}

// Engine is the transmitter's conversation core. It owns the selector and
// history state; both are mutated only by the poll loop.
type Engine struct {
	cfg      Config
	selector *Selector
	history  *History

	responses chan Response
	now       func() time.Time
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithClock overrides the time source. Tests use this to drive history
// expiry and session timeouts deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.HistoryExpiration <= 0 {
		cfg.HistoryExpiration = DefaultHistoryExpiration
	}
	if cfg.ConversationTimeout <= 0 {
		cfg.ConversationTimeout = DefaultConversationTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	var selOpts []SelectorOption
	if cfg.Picker != nil {
		selOpts = append(selOpts, WithPicker(cfg.Picker))
	}

	e := &Engine{
		cfg:       cfg,
		selector:  NewSelector(cfg.Profile, cfg.ConversationTimeout, selOpts...),
		history:   NewHistory(cfg.HistoryLimit, cfg.HistoryExpiration),
		responses: make(chan Response, cfg.QueueSize),
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Responses returns the bounded reply queue drained by the playback worker.
func (e *Engine) Responses() <-chan Response { return e.responses }

// Run polls the drop directory until ctx is cancelled. Ticks that land while
// the playback lock is held are skipped whole, so generation never races
// with speaker output.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("dispatch: engine started",
		"profile", e.cfg.Profile.Name, "poll_interval", e.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatch: engine stopped")
			return ctx.Err()
		case <-ticker.C:
			if e.cfg.Lock != nil && e.cfg.Lock.Held() {
				continue
			}
			if err := e.ProcessPending(ctx); err != nil {
				slog.Error("dispatch: poll failed", "error", err)
			}
		}
	}
}

// ProcessPending handles every unconsumed transcript record in capture
// order. Each record is consumed exactly once, whether or not generating a
// response for it succeeded.
func (e *Engine) ProcessPending(ctx context.Context) error {
	names, err := e.cfg.Store.Pending()
	if err != nil {
		return fmt.Errorf("dispatch: listing records: %w", err)
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.processRecord(ctx, name)
		if err := e.cfg.Store.Consume(name); err != nil {
			slog.Error("dispatch: failed to consume record", "record", name, "error", err)
		}
	}
	return nil
}

func (e *Engine) processRecord(ctx context.Context, name string) {
	rec, err := e.cfg.Store.Read(name)
	if err != nil {
		if errors.Is(err, dropdir.ErrMalformed) {
			slog.Error("dispatch: skipping malformed record", "record", name, "error", err)
			return
		}
		slog.Error("dispatch: failed to read record", "record", name, "error", err)
		return
	}

	now := e.now()
	p := e.selector.Select(rec.Transcription, now)
	if p == nil {
		slog.Debug("dispatch: no responder", "transcription", rec.Transcription)
		return
	}
	slog.Info("dispatch: responder selected",
		"persona", p.Name, "transcription", rec.Transcription)

	final := e.generate(ctx, p, rec, now)
	if final == "" {
		return
	}

	e.history.Append(llm.RoleAssistant, final, now)
	e.selector.NoteResponse(final)
	e.enqueue(Response{Text: final, Voice: p.VoiceFor(e.cfg.TTSProvider), Persona: p.Name})
	e.appendConversationLog(now, p.Name, rec.Transcription, final)
	if e.cfg.Archiver != nil {
		if err := e.cfg.Archiver.Record(ctx, e.cfg.Profile.Name, p.Name, rec.Transcription, final, now); err != nil {
			slog.Error("dispatch: archiving exchange", "error", err)
		}
	}
	e.cfg.Metrics.Responses.Add(ctx, 1, metric.WithAttributes(attribute.String("persona", p.Name)))
}

// generate runs the two-pass completion protocol and returns the final
// response text, or "" when the response was aborted.
func (e *Engine) generate(ctx context.Context, p *persona.Persona, rec dropdir.Record, now time.Time) string {
	e.history.Append(llm.RoleUser, rec.Transcription, now)
	if rec.ToolResponse != "" {
		e.history.Append(llm.RoleAssistant, rec.ToolResponse, now)
	}

	pass1, err := e.complete(ctx, p, now)
	if err != nil {
		slog.Error("dispatch: completion failed", "persona", p.Name, "error", err)
		return ""
	}
	parsed := parseCompletion(pass1)

	// Immediate speech goes out before any tool pass so the caller hears an
	// acknowledgement while the tool runs.
	for _, say := range parsed.Say {
		e.selector.NoteResponse(say)
		e.enqueue(Response{Text: say, Voice: p.VoiceFor(e.cfg.TTSProvider), Persona: p.Name})
	}

	if parsed.Call == nil {
		return strings.TrimSpace(parsed.Leftover)
	}

	result, err := e.invokeTool(ctx, *parsed.Call)
	if err != nil {
		slog.Error("dispatch: tool call failed",
			"tool", parsed.Call.Tool, "method", parsed.Call.Method, "error", err)
		return ""
	}

	e.history.Append(llm.RoleAssistant,
		fmt.Sprintf("TOOL_RESPONSE %s: %s", parsed.Call.Tool, result), now)

	pass2, err := e.complete(ctx, p, now)
	if err != nil {
		slog.Error("dispatch: tool pass completion failed", "persona", p.Name, "error", err)
		return ""
	}
	// Pass 2 supersedes pass 1 leftovers entirely.
	return strings.TrimSpace(parseCompletion(pass2).Leftover)
}

func (e *Engine) complete(ctx context.Context, p *persona.Persona, now time.Time) (string, error) {
	messages := make([]llm.Message, 0, e.history.Len()+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: e.systemPrompt(p, now)})
	messages = append(messages, e.history.Messages()...)

	start := time.Now()
	text, err := e.cfg.LLM.Complete(ctx, messages)
	e.cfg.Metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		e.cfg.Metrics.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", "llm"), attribute.String("kind", "completion")))
	}
	return text, err
}

func (e *Engine) systemPrompt(p *persona.Persona, now time.Time) string {
	prompt := p.RenderPrompt(now)
	if e.cfg.Registry == nil || len(e.cfg.Registry.Names()) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nAvailable tools:\n")
	for _, name := range e.cfg.Registry.Names() {
		t, _ := e.cfg.Registry.Lookup(name)
		fmt.Fprintf(&b, "- %s: %s\n", name, t.Description())
	}
	return b.String()
}

func (e *Engine) invokeTool(ctx context.Context, call toolCall) (string, error) {
	if e.cfg.Registry == nil {
		return "", fmt.Errorf("dispatch: no tools registered")
	}
	t, ok := e.cfg.Registry.Lookup(call.Tool)
	if !ok {
		return "", fmt.Errorf("dispatch: unknown tool %q", call.Tool)
	}

	start := time.Now()
	result, err := t.Invoke(ctx, call.Method, call.Args)
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.cfg.Metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", call.Tool), attribute.String("status", status)))
	slog.Info("dispatch: tool invoked",
		"tool", call.Tool, "method", call.Method,
		"duration", time.Since(start), "status", status)
	return result, err
}

// enqueue hands a response to the playback queue without ever blocking the
// poll loop.
func (e *Engine) enqueue(r Response) {
	select {
	case e.responses <- r:
	default:
		slog.Warn("dispatch: response queue full, dropping response",
			"persona", r.Persona, "text", r.Text)
	}
}

// appendConversationLog records the exchange in the durable flat-file log.
func (e *Engine) appendConversationLog(now time.Time, personaName, userText, response string) {
	if e.cfg.ConversationLog == "" {
		return
	}
	f, err := e.cfg.Fs.OpenFile(e.cfg.ConversationLog, appendFlags, 0o644)
	if err != nil {
		slog.Error("dispatch: opening conversation log", "path", e.cfg.ConversationLog, "error", err)
		return
	}
	defer f.Close()

	line := fmt.Sprintf("%s\tuser\t%s\n%s\t%s\t%s\n",
		now.UTC().Format(time.RFC3339), userText,
		now.UTC().Format(time.RFC3339), personaName, response)
	if _, err := f.WriteString(line); err != nil {
		slog.Error("dispatch: writing conversation log", "path", e.cfg.ConversationLog, "error", err)
	}
}
