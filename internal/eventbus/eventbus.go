// Package eventbus publishes workflow lifecycle events to NATS, grounded
// on the connection/option shape of the teacher's events package.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/workflowforge/engine/internal/wflog"
	"github.com/workflowforge/engine/internal/workflow"
)

// Config configures the NATS connection.
type Config struct {
	URL      string
	User     string
	Password string
}

// Event is the JSON payload published for each listener callback.
type Event struct {
	RunID    string `json:"run_id"`
	Kind     string `json:"kind"`
	Unit     string `json:"unit,omitempty"`
	UnitKind string `json:"unit_kind,omitempty"`
	Message  string `json:"message,omitempty"`
	Stack    string `json:"stack,omitempty"`
}

const subjectPrefix = "workflow.events."

// Sink is a workflow.Listener publishing one subject per workflow name,
// "workflow.events.<workflow_name>". If NATS is unreachable at
// construction time, the sink is disabled and publishes are silently
// skipped, matching the teacher's degrade-gracefully policy.
type Sink struct {
	workflow.BaseListener
	conn         *nats.Conn
	workflowName string
	enabled      bool
}

// New connects to NATS with the same reconnect/backoff policy the
// teacher's subscriber uses. If cfg.URL is empty or the dial fails, it
// returns a disabled sink rather than an error.
func New(cfg Config, workflowName string) *Sink {
	log := wflog.EventBus()
	if cfg.URL == "" {
		log.Warn().Msg("eventbus disabled: no NATS URL configured")
		return &Sink{workflowName: workflowName, enabled: false}
	}

	opts := []nats.Option{
		nats.Name("workflow-engine-eventbus"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("eventbus disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("eventbus reconnected")
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.URL).Msg("eventbus disabled: failed to connect to NATS")
		return &Sink{workflowName: workflowName, enabled: false}
	}

	return &Sink{conn: conn, workflowName: workflowName, enabled: true}
}

// Close closes the NATS connection without draining it first.
func (s *Sink) Close() {
	if s.enabled {
		s.conn.Close()
	}
}

func (s *Sink) publish(e Event) {
	if !s.enabled {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		wflog.EventBus().Warn().Err(err).Msg("failed to marshal workflow event")
		return
	}
	subject := fmt.Sprintf("%s%s", subjectPrefix, s.workflowName)
	if err := s.conn.Publish(subject, data); err != nil {
		wflog.EventBus().Warn().Err(err).Str("subject", subject).Msg("failed to publish workflow event")
	}
}

func (s *Sink) OnStart(ctx *workflow.Context) {
	s.publish(Event{RunID: ctx.RunID(), Kind: "start"})
}

func (s *Sink) OnUnitStart(ctx *workflow.Context) {
	s.publish(Event{RunID: ctx.RunID(), Kind: "unit_start", Unit: ctx.CurrentUnit(), UnitKind: string(ctx.CurrentUnitKind())})
}

func (s *Sink) OnUnitFinish(ctx *workflow.Context) {
	s.publish(Event{RunID: ctx.RunID(), Kind: "unit_finish", Unit: ctx.CurrentUnit(), UnitKind: string(ctx.CurrentUnitKind())})
}

func (s *Sink) OnError(ctx *workflow.Context, kind, value, stack string) {
	s.publish(Event{RunID: ctx.RunID(), Kind: "error", Unit: ctx.CurrentUnit(), Message: value, Stack: stack})
}

func (s *Sink) OnFinish(ctx *workflow.Context) {
	s.publish(Event{RunID: ctx.RunID(), Kind: "finish"})
}
