// README: Operations alerts raised by dispatch (SMS to ops, FCM topic push).
package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"evconnect/internal/logging"
	"evconnect/internal/notify"
)

type Type string

const (
	NoAgentsInWorkArea   Type = "NO_AGENTS_IN_WORK_AREA"
	AgentAssignmentError Type = "AGENT_ASSIGNMENT_ERROR"
)

type Alert struct {
	Type    Type
	Message string
	Context map[string]string
}

// Alerter delivers alerts. Delivery is fire-and-forget: failures are logged
// by the implementation.
type Alerter interface {
	Notify(ctx context.Context, a Alert)
}

// SMSAlerter texts the operations phone.
type SMSAlerter struct {
	gateway notify.Gateway
	phone   string
	log     logging.Logger
}

func NewSMSAlerter(gateway notify.Gateway, opsPhone string, log logging.Logger) *SMSAlerter {
	if log == nil {
		log = logging.Noop()
	}
	return &SMSAlerter{gateway: gateway, phone: opsPhone, log: log}
}

func (s *SMSAlerter) Notify(ctx context.Context, a Alert) {
	if s.phone == "" {
		s.log.Warn(ctx, "ops phone not configured; alert dropped", logging.String("type", string(a.Type)))
		return
	}
	if _, err := s.gateway.Send(ctx, s.phone, Format(a)); err != nil {
		s.log.Error(ctx, "failed to send ops alert", logging.String("type", string(a.Type)), logging.Err(err))
	}
}

// Format renders an alert as a single SMS line.
func Format(a Alert) string {
	msg := fmt.Sprintf("Ops alert: %s. %s", a.Type, a.Message)
	if len(a.Context) == 0 {
		return msg
	}
	keys := make([]string, 0, len(a.Context))
	for k := range a.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + a.Context[k]
	}
	return msg + " (" + strings.Join(parts, ", ") + ")"
}

// Multi fans an alert out to every channel.
type Multi []Alerter

func (m Multi) Notify(ctx context.Context, a Alert) {
	for _, al := range m {
		if al != nil {
			al.Notify(ctx, a)
		}
	}
}

// Recorder keeps alerts in memory.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Notify(_ context.Context, a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

// Types lists the recorded alert types in order.
func (r *Recorder) Types() []Type {
	alerts := r.Alerts()
	out := make([]Type, len(alerts))
	for i, a := range alerts {
		out[i] = a.Type
	}
	return out
}
