// Package dialog implements multi-turn conversational flows as one generic
// form abstraction: an ordered list of steps that each collect one raw text
// value, optionally offering a choice keyboard, with an optional confirmation
// gate before the terminal action. The engine is transport-agnostic; it
// consumes inbound text and produces Reply values for the bot layer to send.
package dialog

import (
	"context"
	"fmt"
	"strings"

	"clockbot/core/logger"
	"clockbot/core/telegram/state"

	"log/slog"
)

// Sender identifies the user a flow belongs to.
type Sender struct {
	ID     int64
	Handle string
}

// Reply is one outbound message. Choices, when set, are rendered as a
// one-time reply keyboard.
type Reply struct {
	Text           string
	Choices        [][]string
	RemoveKeyboard bool
}

// Values holds the raw field values collected so far, keyed by field name.
// Values are stored exactly as typed; nothing is parsed at collection time.
type Values map[string]string

// CollectFunc inspects one raw input before it is stored. Returning
// halt=true terminates the flow with the given replies and no session left
// behind.
type CollectFunc func(ctx context.Context, s Sender, vals Values, input string) (halt bool, replies []Reply)

// ChoicesFunc produces the keyboard rows offered for a step, derived from
// the values collected so far. A nil result means free text input.
type ChoicesFunc func(ctx context.Context, s Sender, vals Values) ([][]string, error)

// Step is one field-collection state of a flow.
type Step struct {
	Field   string
	Prompt  string
	Choices ChoicesFunc
	Collect CollectFunc

	// EmptyMessage, when non-empty, aborts the flow if Choices yields no
	// rows. ChoicesFail prefixes the message shown when Choices errors.
	EmptyMessage string
	ChoicesFail  string
}

// Confirm is the optional confirmation gate entered after the last step.
// The affirmative token triggers Accept; any other input cancels.
type Confirm struct {
	Render     func(vals Values) string
	Accept     func(ctx context.Context, s Sender, vals Values) []Reply
	CancelText string
}

// Flow is a complete conversational state machine definition.
type Flow struct {
	Name string
	// Gate runs before a session is created. Non-nil replies block entry.
	Gate    func(ctx context.Context, s Sender) []Reply
	Steps   []Step
	Confirm *Confirm
	// Finish runs after the last step when there is no confirmation gate.
	Finish func(ctx context.Context, s Sender, vals Values) []Reply
}

const confirmYes = "yes"

var confirmKeyboard = [][]string{{"yes", "no"}}

// Engine owns the registered flows and per-user sessions.
type Engine struct {
	sessions state.Manager
	flows    map[string]*Flow
}

// NewEngine creates an engine over the given session manager.
func NewEngine(sessions state.Manager) *Engine {
	return &Engine{
		sessions: sessions,
		flows:    make(map[string]*Flow),
	}
}

// Register adds flows to the engine. Later registrations with the same name
// replace earlier ones.
func (e *Engine) Register(flows ...*Flow) {
	for _, f := range flows {
		if f == nil || f.Name == "" || len(f.Steps) == 0 {
			continue
		}
		e.flows[f.Name] = f
	}
}

// InProgress reports whether the user has an active flow.
func (e *Engine) InProgress(userID int64) bool {
	return e.sessions.InProgress(userID)
}

// Begin starts the named flow for the sender, replacing any active session.
// The first step is prepared before the session is created so an aborted
// entry leaves no state behind.
func (e *Engine) Begin(ctx context.Context, s Sender, name string) []Reply {
	flow, ok := e.flows[name]
	if !ok {
		return []Reply{{Text: "Unknown action."}}
	}

	if flow.Gate != nil {
		if block := flow.Gate(ctx, s); block != nil {
			e.sessions.Clear(s.ID)
			return block
		}
	}

	prompt, abort := e.renderStep(ctx, s, flow.Steps[0], Values{})
	if abort != nil {
		return abort
	}

	e.sessions.Begin(s.ID, flow.Name)
	logger.Debug(ctx, "dialog", "flow.begin",
		slog.String("flow", flow.Name),
		slog.Int64("user_id", s.ID),
	)
	return prompt
}

// Cancel drops the sender's active session, if any.
func (e *Engine) Cancel(s Sender) []Reply {
	if !e.sessions.InProgress(s.ID) {
		return []Reply{{Text: "Nothing to cancel."}}
	}
	e.sessions.Clear(s.ID)
	return []Reply{{Text: "Cancelled.", RemoveKeyboard: true}}
}

// HandleText feeds one inbound text message into the sender's active flow.
// The second return value reports whether a flow consumed the message.
func (e *Engine) HandleText(ctx context.Context, s Sender, text string) ([]Reply, bool) {
	sess, ok := e.sessions.Get(s.ID)
	if !ok {
		return nil, false
	}
	flow, ok := e.flows[sess.Flow]
	if !ok {
		e.sessions.Clear(s.ID)
		return nil, false
	}

	vals := Values(sess.Fields)

	// Past the last step means the confirmation gate is armed.
	if sess.Step >= len(flow.Steps) {
		return e.resolveConfirm(ctx, s, flow, vals, text), true
	}

	step := flow.Steps[sess.Step]
	var out []Reply

	if step.Collect != nil {
		halt, replies := step.Collect(ctx, s, vals, text)
		if halt {
			e.sessions.Clear(s.ID)
			logger.Debug(ctx, "dialog", "flow.halt",
				slog.String("flow", flow.Name),
				slog.String("field", step.Field),
				slog.Int64("user_id", s.ID),
			)
			return replies, true
		}
		out = append(out, replies...)
	}

	e.sessions.SetField(s.ID, step.Field, text)
	vals[step.Field] = text

	next := sess.Step + 1
	logger.Debug(ctx, "dialog", "flow.step",
		slog.String("flow", flow.Name),
		slog.String("field", step.Field),
		slog.Int("step", next),
		slog.Int64("user_id", s.ID),
	)

	if next < len(flow.Steps) {
		prompt, abort := e.renderStep(ctx, s, flow.Steps[next], vals)
		if abort != nil {
			e.sessions.Clear(s.ID)
			return append(out, abort...), true
		}
		e.sessions.Advance(s.ID, next)
		return append(out, prompt...), true
	}

	if flow.Confirm != nil {
		e.sessions.Advance(s.ID, next)
		return append(out, Reply{
			Text:    flow.Confirm.Render(vals),
			Choices: confirmKeyboard,
		}), true
	}

	e.sessions.Clear(s.ID)
	return append(out, flow.Finish(ctx, s, vals)...), true
}

// resolveConfirm consumes the confirmation token. Either path destroys the
// session; the remote call is attempted at most once.
func (e *Engine) resolveConfirm(ctx context.Context, s Sender, flow *Flow, vals Values, text string) []Reply {
	e.sessions.Clear(s.ID)

	if !strings.EqualFold(strings.TrimSpace(text), confirmYes) {
		logger.Debug(ctx, "dialog", "flow.cancel",
			slog.String("flow", flow.Name),
			slog.Int64("user_id", s.ID),
		)
		cancel := flow.Confirm.CancelText
		if cancel == "" {
			cancel = "Cancelled."
		}
		return []Reply{{Text: cancel, RemoveKeyboard: true}}
	}

	logger.Debug(ctx, "dialog", "flow.confirm",
		slog.String("flow", flow.Name),
		slog.Int64("user_id", s.ID),
	)
	return flow.Confirm.Accept(ctx, s, vals)
}

func (e *Engine) renderStep(ctx context.Context, s Sender, step Step, vals Values) (prompt, abort []Reply) {
	var rows [][]string
	if step.Choices != nil {
		var err error
		rows, err = step.Choices(ctx, s, vals)
		if err != nil {
			prefix := step.ChoicesFail
			if prefix == "" {
				prefix = "Error"
			}
			return nil, []Reply{{Text: fmt.Sprintf("%s: %v", prefix, err), RemoveKeyboard: true}}
		}
		if len(rows) == 0 && step.EmptyMessage != "" {
			return nil, []Reply{{Text: step.EmptyMessage, RemoveKeyboard: true}}
		}
	}
	return []Reply{{Text: step.Prompt, Choices: rows}}, nil
}
