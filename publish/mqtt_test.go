package publish

import (
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                       { return true }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

// fakeClient overrides only what the sink calls.
type fakeClient struct {
	mqtt.Client
	topics []string
	retain []bool
	err    error
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, _ interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.retain = append(c.retain, retained)
	return newFakeToken(c.err)
}

func (c *fakeClient) IsConnected() bool { return true }

func TestMQTTSinkPublish(t *testing.T) {
	client := &fakeClient{}
	sink := NewMQTTSink(MQTTConfig{Topic: "ppg/display", Retain: true}, nil)
	sink.Client = client

	err := sink.Publish(testDisplay())
	require.Error(t, err, "not connected yet")
	assert.Equal(t, uint64(1), sink.Stats().Errors)

	sink.setConnected(true)
	require.NoError(t, sink.Publish(testDisplay()))
	assert.Equal(t, []string{"ppg/display"}, client.topics)
	assert.Equal(t, []bool{true}, client.retain)

	stats := sink.Stats()
	assert.True(t, stats.Connected)
	assert.Equal(t, uint64(1), stats.Published)
}

func TestMQTTSinkPublishFailure(t *testing.T) {
	sink := NewMQTTSink(MQTTConfig{Topic: "ppg/display"}, MsgpackCodec{})
	sink.Client = &fakeClient{err: errors.New("not authorized")}
	sink.setConnected(true)

	err := sink.Publish(testDisplay())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
	assert.Equal(t, uint64(1), sink.Stats().Errors)
}
