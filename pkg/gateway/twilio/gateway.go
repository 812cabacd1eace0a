// Package twilio sends outbound messages through the Twilio REST API,
// for WhatsApp and SMS channels.
package twilio

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/mainstar123/finchat/pkg/gateway"
)

type Config struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

type Gateway struct {
	cfg    Config
	client messageCreator
}

func New(cfg Config) (*Gateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("missing twilio credentials")
	}
	if cfg.From == "" {
		return nil, errors.New("missing from number")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Gateway{cfg: cfg, client: rest.Api}, nil
}

func (g *Gateway) Name() string { return "twilio" }

func (g *Gateway) Send(ctx context.Context, out gateway.Outbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(out.UserID) == "" {
		return errors.New("missing recipient")
	}
	if strings.TrimSpace(out.Content) == "" {
		return nil
	}
	params := &api.CreateMessageParams{}
	params.SetTo(address(out.ChannelID, out.UserID))
	params.SetFrom(address(out.ChannelID, g.cfg.From))
	params.SetBody(out.Content)
	resp, err := g.client.CreateMessage(params)
	if err != nil {
		return err
	}
	if resp.Sid == nil {
		return errors.New("missing message sid")
	}
	return nil
}

// address prefixes the number for WhatsApp sends; SMS uses the bare
// E.164 number.
func address(channelID, number string) string {
	if strings.EqualFold(channelID, "whatsapp") && !strings.HasPrefix(number, "whatsapp:") {
		return "whatsapp:" + number
	}
	return number
}
