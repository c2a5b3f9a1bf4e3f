package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/clipfetch/clipfetch/internal/domain"
)

// MockBroker is a mock implementation of domain.Broker
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockBroker) Consume(ctx context.Context) (*domain.Delivery, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *MockBroker) Ack(ctx context.Context, d *domain.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockBroker) Retry(ctx context.Context, d *domain.Delivery, payload []byte, delay time.Duration) error {
	args := m.Called(ctx, d, payload, delay)
	return args.Error(0)
}

func (m *MockBroker) DeadLetter(ctx context.Context, d *domain.Delivery, payload []byte) error {
	args := m.Called(ctx, d, payload)
	return args.Error(0)
}

func (m *MockBroker) MoveDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockBroker) Heartbeat(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBroker) ReclaimStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockBroker) QueueDepths(ctx context.Context) (int64, int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Get(2).(int64), args.Error(3)
}

func TestNotifyService_PublishDownloadLink(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("publishes a fresh message with zero attempts", func(t *testing.T) {
		mockBroker := new(MockBroker)
		svc := NewNotifyService(mockBroker, logger)

		var published []byte
		mockBroker.On("Publish", ctx, mock.AnythingOfType("[]uint8")).
			Run(func(args mock.Arguments) {
				published = args.Get(1).([]byte)
			}).
			Return(nil).Once()

		err := svc.PublishDownloadLink(ctx, "u@e.com", "http://ex.com/a.mp4")

		assert.NoError(t, err)
		msg, err := domain.DecodeEmailMessage(published)
		assert.NoError(t, err)
		assert.Equal(t, "u@e.com", msg.Recipient)
		assert.Equal(t, 0, msg.Attempts)
		assert.Contains(t, msg.Body, "http://ex.com/a.mp4")
	})

	t.Run("broker failure propagates to the caller", func(t *testing.T) {
		mockBroker := new(MockBroker)
		svc := NewNotifyService(mockBroker, logger)

		mockBroker.On("Publish", ctx, mock.Anything).Return(domain.ErrBrokerUnavailable).Once()

		err := svc.PublishDownloadLink(ctx, "u@e.com", "http://ex.com/a.mp4")

		assert.ErrorIs(t, err, domain.ErrBrokerUnavailable)
	})
}
