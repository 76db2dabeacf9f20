package alert

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evconnect/internal/logging"
	"evconnect/internal/notify"
)

func TestSMSAlerter_SendsFormattedAlert(t *testing.T) {
	rec := notify.NewRecorder()
	a := NewSMSAlerter(rec, "+1555000", nil)

	a.Notify(context.Background(), Alert{
		Type:    NoAgentsInWorkArea,
		Message: "No agents cover 1 Main St",
		Context: map[string]string{"service_id": "s1", "address": "1 Main St"},
	})
	assert.Equal(t,
		[]string{"Ops alert: NO_AGENTS_IN_WORK_AREA. No agents cover 1 Main St (address=1 Main St, service_id=s1)"},
		rec.To("+1555000"))
}

func TestSMSAlerter_SwallowsFailures(t *testing.T) {
	rec := notify.NewRecorder()
	rec.FailFor("+1555000", errors.New("down"))
	a := NewSMSAlerter(rec, "+1555000", nil)
	assert.NotPanics(t, func() { a.Notify(context.Background(), Alert{Type: AgentAssignmentError}) })

	unset := NewSMSAlerter(rec, "", nil)
	unset.Notify(context.Background(), Alert{Type: AgentAssignmentError})
	assert.Empty(t, rec.Messages())
}

func TestMulti(t *testing.T) {
	r1, r2 := &Recorder{}, &Recorder{}
	m := Multi{r1, nil, r2}
	m.Notify(context.Background(), Alert{Type: AgentAssignmentError})
	assert.Equal(t, []Type{AgentAssignmentError}, r1.Types())
	assert.Equal(t, []Type{AgentAssignmentError}, r2.Types())
}

type fakeSender struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	f.sent = append(f.sent, msg)
	return "projects/p/messages/1", f.err
}

func TestPushAlerter(t *testing.T) {
	fs := &fakeSender{}
	p := &PushAlerter{client: fs, topic: "ops", log: logging.Noop()}

	p.Notify(context.Background(), Alert{
		Type:    NoAgentsInWorkArea,
		Message: "none",
		Context: map[string]string{"service_id": "s1"},
	})
	require.Len(t, fs.sent, 1)
	msg := fs.sent[0]
	assert.Equal(t, "ops", msg.Topic)
	assert.Equal(t, "NO_AGENTS_IN_WORK_AREA", msg.Data["type"])
	assert.Equal(t, "s1", msg.Data["service_id"])
	assert.Equal(t, "none", msg.Notification.Body)

	fs.err = errors.New("quota")
	p.Notify(context.Background(), Alert{Type: AgentAssignmentError})
	assert.Len(t, fs.sent, 2, "a failed push is attempted once and dropped")
}
