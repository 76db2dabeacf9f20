package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestOfferMessage(t *testing.T) {
	travel := 75 * time.Minute
	tests := []struct {
		name     string
		miles    float64
		direct   bool
		travel   *time.Duration
		expected string
	}{
		{
			name:     "driving distance with travel time",
			miles:    12.345,
			travel:   &travel,
			expected: "You have a nearby service request (12.35 miles away). Estimated travel time: 1 hour 15 min. Click the link to accept: https://x/link/1. Link expires in 2 minutes.",
		},
		{
			name:     "direct distance fallback",
			miles:    3,
			direct:   true,
			expected: "You have a service request (approx. 3.00 miles away as the crow flies). Click the link to accept: https://x/link/1. Link expires in 2 minutes.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OfferMessage(tt.miles, tt.direct, tt.travel, "https://x/link/1", 2*time.Minute)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatTravelTime(t *testing.T) {
	assert.Equal(t, "0 min", FormatTravelTime(30*time.Second))
	assert.Equal(t, "45 min", FormatTravelTime(45*time.Minute))
	assert.Equal(t, "1 hour 0 min", FormatTravelTime(time.Hour))
	assert.Equal(t, "2 hours 5 min", FormatTravelTime(2*time.Hour+5*time.Minute+59*time.Second))
}

func TestConfirmationMessages(t *testing.T) {
	assert.Equal(t, "You have successfully accepted service #abc.", AcceptedMessage("abc"))
	at := time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "Your service has been scheduled. Ana will arrive on 03/04/2026 at 02:30 PM.", ScheduledMessage("Ana", at))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	_, err := r.Send(ctx, "+1", "hi")
	require.NoError(t, err)
	_, err = r.Send(ctx, "", "dropped")
	assert.ErrorIs(t, err, ErrEmptyRecipient)

	r.FailFor("+2", errors.New("undeliverable"))
	_, err = r.Send(ctx, "+2", "nope")
	assert.Error(t, err)

	assert.Equal(t, []string{"hi"}, r.To("+1"))
	assert.Len(t, r.Messages(), 1)
}

type fakeMessages struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	if f.err != nil {
		return nil, f.err
	}
	sid, status := "SM123", "queued"
	return &twilioApi.ApiV2010Message{Sid: &sid, Status: &status}, nil
}

func TestTwilioGateway_Send(t *testing.T) {
	fake := &fakeMessages{}
	g := &TwilioGateway{api: fake, from: "+15550000"}

	d, err := g.Send(context.Background(), "+15551111", "hello")
	require.NoError(t, err)
	assert.Equal(t, Delivery{ID: "SM123", Status: "queued"}, d)
	require.NotNil(t, fake.params.To)
	assert.Equal(t, "+15551111", *fake.params.To)
	assert.Equal(t, "+15550000", *fake.params.From)
	assert.Equal(t, "hello", *fake.params.Body)

	fake.err = errors.New("rate limited")
	_, err = g.Send(context.Background(), "+15551111", "hello")
	assert.Error(t, err)

	_, err = g.Send(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrEmptyRecipient)
}
