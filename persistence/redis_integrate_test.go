//go:build integration

package persistence

import (
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestIntegrateRedisRoundTrip(t *testing.T) {
	manager, err := New(&Config{
		Type:        TypeRedis,
		KeyPrefix:   "it_sideline/",
		RedisConfig: RedisConfig{Addr: "localhost:6379"},
	})
	require.NoError(t, err)
	require.NoError(t, manager.Open())
	defer manager.Close()

	state := model.NewConsumerStateBuilder().WithPartition(0, 5).Build()
	require.NoError(t, manager.PersistConsumerState("c1", state))
	require.NoError(t, manager.Open())
	got, exist, err := manager.RetrieveConsumerState("c1")
	require.NoError(t, err)
	require.True(t, exist)
	require.True(t, state.Equal(got))

	_, exist, err = manager.RetrieveConsumerState("never-written")
	require.NoError(t, err)
	require.False(t, exist)
}

func TestIntegratePulsarReplay(t *testing.T) {
	config := &Config{
		Type:      TypePulsar,
		KeyPrefix: "it_sideline/",
		PulsarConfig: PulsarConfig{
			Host:            "localhost",
			HttpPort:        8080,
			TcpPort:         6650,
			Tenant:          "public",
			Namespace:       "default",
			Topic:           "sideline_state",
			AutoCreateTopic: true,
		},
	}
	manager, err := New(config)
	require.NoError(t, err)
	require.NoError(t, manager.Open())
	state := model.NewConsumerStateBuilder().WithPartition(0, 5).Build()
	require.NoError(t, manager.PersistSidelineRequestState("req", state))
	require.NoError(t, manager.Close())

	reopened, err := New(config)
	require.NoError(t, err)
	require.NoError(t, reopened.Open())
	defer reopened.Close()
	got, exist, err := reopened.RetrieveSidelineRequestState("req")
	require.NoError(t, err)
	require.True(t, exist)
	require.True(t, state.Equal(got))
}
