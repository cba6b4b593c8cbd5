package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got []any
	_, err := b.Subscribe(TypeCheckpoint, func(e Event) error {
		got = append(got, e.Data())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent(TypeCheckpoint, "race", 3)))
	require.NoError(t, b.Publish(NewEvent(TypePenalty, "race", 4)))

	assert.Equal(t, []any{3}, got)
}

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := New()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		_, err := b.Subscribe(TypeState, func(Event) error {
			order = append(order, name)
			return nil
		})
		require.NoError(t, err)
	}
	_, err := b.Subscribe(Wildcard, func(Event) error {
		order = append(order, "*")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent(TypeState, "race", nil)))
	assert.Equal(t, []string{"a", "b", "c", "*"}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	e1 := errors.New("first")
	e2 := errors.New("second")
	_, _ = b.Subscribe(TypeFinish, func(Event) error { return e1 })
	_, _ = b.Subscribe(TypeFinish, func(Event) error { return e2 })

	err := b.Publish(NewEvent(TypeFinish, "race", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.Equal(t, uint64(1), b.Metrics().Errors)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe(TypeTileReady, func(Event) error { calls++; return nil })
	require.NoError(t, err)
	assert.True(t, sub.IsActive())
	assert.NotEmpty(t, sub.ID())

	require.NoError(t, b.Publish(NewEvent(TypeTileReady, "terrain", nil)))
	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Publish(NewEvent(TypeTileReady, "terrain", nil)))

	assert.Equal(t, 1, calls)
	assert.False(t, sub.IsActive())
	assert.Equal(t, uint64(0), b.Metrics().SubscribersActive)
	assert.NoError(t, b.Unsubscribe(nil))
}

func TestPublishBatch(t *testing.T) {
	b := New()
	seen := 0
	_, _ = b.Subscribe(Wildcard, func(Event) error { seen++; return nil })

	err := b.PublishBatch(
		NewEvent(TypeCheckpoint, "race", nil),
		NewEvent(TypePenalty, "race", nil),
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Equal(t, uint64(2), b.Metrics().Published)
}

func TestSubscribeValidation(t *testing.T) {
	b := New()
	_, err := b.Subscribe("", func(Event) error { return nil })
	assert.Error(t, err)
	_, err = b.Subscribe(TypeState, nil)
	assert.Error(t, err)
}
