package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic")
	require.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.Error(t, err)

	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "prhi.portal.events")
	require.NoError(t, err)
	assert.Equal(t, "prhi.portal.events", pub.writer.Topic)
	require.NoError(t, pub.Close())
}

func TestNopPublisher(t *testing.T) {
	pub := NewNopPublisher(nil)
	require.NoError(t, pub.Publish(context.Background(), Event{Type: TypeBatchCompleted}))
	require.NoError(t, pub.Close())
}
