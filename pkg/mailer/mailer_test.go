package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/mailersend/mailersend-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	sendErr  error
	quotaErr error
	inputs   []*ses.SendEmailInput
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func (m *mockSES) GetSendQuota(ctx context.Context, params *ses.GetSendQuotaInput, optFns ...func(*ses.Options)) (*ses.GetSendQuotaOutput, error) {
	if m.quotaErr != nil {
		return nil, m.quotaErr
	}
	return &ses.GetSendQuotaOutput{}, nil
}

type mockMailerSend struct {
	err      error
	messages []*mailersend.Message
}

func (m *mockMailerSend) Send(ctx context.Context, message *mailersend.Message) (*mailersend.Response, error) {
	m.messages = append(m.messages, message)
	if m.err != nil {
		return nil, m.err
	}
	return &mailersend.Response{}, nil
}

var testConfig = Config{From: "biblioteca@example.com", FromName: "Biblioteca"}

func TestSESSenderSend(t *testing.T) {
	t.Parallel()

	client := &mockSES{}
	s := newSESSender(client, testConfig)
	require.NoError(t, s.Send(context.Background(), "ana@example.com", "Respuesta a: Reserva", "Hola,\n\nTu reserva..."))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "biblioteca@example.com", aws.ToString(in.Source))
	assert.Equal(t, []string{"ana@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Respuesta a: Reserva", aws.ToString(in.Message.Subject.Data))
	assert.Nil(t, in.Message.Body.Html)
}

func TestSESSenderErrors(t *testing.T) {
	t.Parallel()

	client := &mockSES{sendErr: errors.New("SES service unavailable"), quotaErr: errors.New("expired token")}
	s := newSESSender(client, testConfig)

	err := s.Send(context.Background(), "ana@example.com", "Re", "body")
	assert.ErrorContains(t, err, "SES service unavailable")
	assert.ErrorContains(t, s.Ping(context.Background()), "expired token")

	err = s.Send(context.Background(), "not-an-address", "Re", "body")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Len(t, client.inputs, 1, "invalid messages never reach SES")
}

func TestMailerSendSender(t *testing.T) {
	t.Parallel()

	api := &mockMailerSend{}
	m := newMailerSendSender(api, testConfig)
	require.NoError(t, m.Send(context.Background(), "ana@example.com", "Re: Reserva", "body"))
	assert.Len(t, api.messages, 1)

	api.err = errors.New("422 unprocessable")
	assert.ErrorContains(t, m.Send(context.Background(), "ana@example.com", "Re: Reserva", "body"), "422")

	assert.ErrorIs(t, m.Send(context.Background(), "ana@example.com", " ", "body"), ErrInvalidMessage)
}

func TestLogSenderKeepsOutbox(t *testing.T) {
	t.Parallel()

	l := NewLogSender()
	require.NoError(t, l.Send(context.Background(), "ana@example.com", "Re", "body"))
	assert.Equal(t, []Message{{To: "ana@example.com", Subject: "Re", Body: "body"}}, l.Sent())
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), Config{Backend: "LOG", From: "biblioteca@example.com"})
	require.NoError(t, err)
	assert.Equal(t, BackendLog, s.Name())

	_, err = New(context.Background(), Config{Backend: "pigeon", From: "biblioteca@example.com"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Backend: BackendMailerSend, From: "biblioteca@example.com"})
	assert.Error(t, err, "mailersend without api key")

	_, err = New(context.Background(), Config{From: "nope"})
	assert.Error(t, err)
}
