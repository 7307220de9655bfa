package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

func opener(ch *MockChannel) channelOpener {
	return func() (amqpChannel, error) { return ch, nil }
}

func TestNewRabbitMQEventPublisher_Validation(t *testing.T) {
	_, err := NewRabbitMQEventPublisher(nil, "ledger", logger)
	assert.EqualError(t, err, "RabbitMQ connection cannot be nil")

	_, err = newPublisher(opener(new(MockChannel)), "", logger)
	assert.EqualError(t, err, "RabbitMQ exchange name cannot be empty")
}

func TestNewPublisher_DeclaresTopicExchange(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", "ledger", amqp.ExchangeTopic, true, false, false, false, amqp.Table(nil)).Return(nil)
	ch.On("Close").Return(nil)

	p, err := newPublisher(opener(ch), "ledger", logger)

	require.NoError(t, err)
	assert.NotNil(t, p)
	ch.AssertExpectations(t)
}

func TestNewPublisher_DeclareFails(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("access refused"))
	ch.On("Close").Return(nil)

	_, err := newPublisher(opener(ch), "ledger", logger)

	assert.ErrorContains(t, err, "failed to declare exchange 'ledger'")
}

func TestPublishPaymentReceived(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("Close").Return(nil)

	var published amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, "ledger", RoutingKeyPaymentReceived, false, false, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(5).(amqp.Publishing) }).
		Return(nil)

	p, err := newPublisher(opener(ch), "ledger", logger)
	require.NoError(t, err)

	err = p.PublishPaymentReceived(context.Background(), PaymentReceivedEvent{
		BorrowerID: "b1",
		LoanID:     "l1",
		PaymentID:  "p1",
		Amount:     decimal.NewFromInt(250),
		Timestamp:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, "application/json", published.ContentType)
	assert.Equal(t, publisherAppID, published.AppId)
	assert.Equal(t, amqp.Persistent, published.DeliveryMode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(published.Body, &body))
	assert.Equal(t, "b1", body["borrowerId"])
	assert.Equal(t, "250", body["amount"])
}

func TestPublish_ChannelError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("Close").Return(nil)

	p, err := newPublisher(opener(ch), "ledger", logger)
	require.NoError(t, err)
	p.openChannel = func() (amqpChannel, error) { return nil, errors.New("connection closed") }

	err = p.PublishBorrowerDeleted(context.Background(), BorrowerDeletedEvent{BorrowerID: "b1"})
	assert.ErrorContains(t, err, "failed to open channel")
}

func TestPublish_BrokerError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("Close").Return(nil)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, RoutingKeyCollectionReminder, false, false, mock.Anything).
		Return(errors.New("channel closed"))

	p, err := newPublisher(opener(ch), "ledger", logger)
	require.NoError(t, err)

	err = p.PublishCollectionReminder(context.Background(), CollectionReminderEvent{BorrowerID: "b1", Urgency: "Overdue"})
	assert.ErrorContains(t, err, "failed to publish message")
}
