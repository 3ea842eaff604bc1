package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/computers-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"shop-prod", "", ""},
		{"shop-prod", "order-events", "projects/shop-prod/topics/order-events"},
		{"shop-prod", "  order-events ", "projects/shop-prod/topics/order-events"},
		{"shop-prod", "projects/other/topics/order-events", "projects/other/topics/order-events"},
		{"", "order-events", ""},
		{"", "projects/other/topics/order-events", "projects/other/topics/order-events"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, topicResourceName(tc.project, tc.name), "%q/%q", tc.project, tc.name)
	}
}

func TestNilClientIsInert(t *testing.T) {
	var c *Client
	require.Nil(t, c.Publisher("order-events"))
	require.ErrorIs(t, c.Ping(context.Background()), errClosed)
	require.NoError(t, c.Close())
}

func TestNewClientValidatesConfigBeforeDialing(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "x"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "shop"}, config.PubSubConfig{OrdersTopic: " "}, nil)
	require.ErrorIs(t, err, errNoTopic)
}
