// README: Outbound SMS gateway with Twilio, logging and recording implementations.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"evconnect/internal/logging"
)

var ErrEmptyRecipient = errors.New("recipient number is empty")

// Delivery is the provider's receipt for a sent message.
type Delivery struct {
	ID     string
	Status string
}

// Gateway sends a text message to a phone number.
type Gateway interface {
	Send(ctx context.Context, to, body string) (Delivery, error)
}

// LogGateway writes messages to the log instead of sending them.
type LogGateway struct {
	log logging.Logger
}

func NewLogGateway(log logging.Logger) *LogGateway {
	if log == nil {
		log = logging.Noop()
	}
	return &LogGateway{log: log}
}

func (g *LogGateway) Send(ctx context.Context, to, body string) (Delivery, error) {
	if to == "" {
		return Delivery{}, ErrEmptyRecipient
	}
	g.log.Info(ctx, "sms", logging.String("to", to), logging.String("body", body))
	return Delivery{Status: "logged"}, nil
}

// Message is one message captured by a Recorder.
type Message struct {
	To     string
	Body   string
	SentAt time.Time
}

// Recorder keeps every message in memory. FailFor makes sends to the given
// numbers fail.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: map[string]error{}}
}

func (r *Recorder) FailFor(to string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[to] = err
}

func (r *Recorder) Send(_ context.Context, to, body string) (Delivery, error) {
	if to == "" {
		return Delivery{}, ErrEmptyRecipient
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[to]; err != nil {
		return Delivery{}, err
	}
	r.messages = append(r.messages, Message{To: to, Body: body, SentAt: time.Now()})
	return Delivery{Status: "recorded"}, nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// To returns the bodies sent to one number, in order.
func (r *Recorder) To(number string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.messages {
		if m.To == number {
			out = append(out, m.Body)
		}
	}
	return out
}
