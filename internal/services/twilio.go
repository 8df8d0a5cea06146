package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// TwilioSender delivers WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string // Format: "whatsapp:+14155238886"
	log    *zap.Logger
}

// NewTwilioSender creates a new Twilio sender
func NewTwilioSender(accountSid, authToken, from string, log *zap.Logger) (*TwilioSender, error) {
	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioSender{
		client: client,
		from:   whatsAppAddress(from),
		log:    log,
	}, nil
}

// whatsAppAddress formats a phone number as a Twilio WhatsApp address.
func whatsAppAddress(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return "whatsapp:" + phone
}

// SendText sends a WhatsApp text message via Twilio
func (t *TwilioSender) SendText(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(to))
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.log.Info("WhatsApp message sent", zap.String("sid", sid), zap.String("to", to))
	return nil
}

// LogSender writes outbound messages to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a sender for development without a messaging channel.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// SendText logs the message.
func (l *LogSender) SendText(_ context.Context, to, body string) error {
	l.log.Info("Outbound message (not delivered)", zap.String("to", to), zap.String("body", body))
	return nil
}
