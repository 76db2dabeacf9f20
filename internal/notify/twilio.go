package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway sends SMS through the Twilio Messages API.
type TwilioGateway struct {
	api  messageCreator
	from string
}

func NewTwilioGateway(accountSID, authToken, from string) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{api: client.Api, from: from}
}

func (g *TwilioGateway) Send(ctx context.Context, to, body string) (Delivery, error) {
	if to == "" {
		return Delivery{}, ErrEmptyRecipient
	}
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.from)
	params.SetBody(body)

	resp, err := g.api.CreateMessage(params)
	if err != nil {
		return Delivery{}, fmt.Errorf("twilio send: %w", err)
	}
	var d Delivery
	if resp.Sid != nil {
		d.ID = *resp.Sid
	}
	if resp.Status != nil {
		d.Status = *resp.Status
	}
	return d, nil
}
