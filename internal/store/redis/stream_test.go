package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/event"
)

func TestInMemoryStream_PublishConsume(t *testing.T) {
	s := NewInMemoryStream()
	defer s.Close()

	ev := event.TenderChanged{
		TenderID:         uuid.New(),
		ControlNumber:    "c-1",
		GlobalUpdateDate: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Followers:        []event.Recipient{{Name: "Maria", Email: "maria@example.com"}},
	}
	require.NoError(t, s.Publish(context.Background(), ev))

	got, err := s.Consume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestInMemoryStream_PreservesOrder(t *testing.T) {
	s := NewInMemoryStream()
	defer s.Close()

	for _, cn := range []string{"c-1", "c-2", "c-3"} {
		require.NoError(t, s.Publish(context.Background(), event.TenderChanged{ControlNumber: cn}))
	}
	for _, want := range []string{"c-1", "c-2", "c-3"} {
		got, err := s.Consume(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got.ControlNumber)
	}
}

func TestInMemoryStream_ConsumeRespectsContext(t *testing.T) {
	s := NewInMemoryStream()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Consume(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
