package publish

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestNATSSinkPublish(t *testing.T) {
	pub := &fakePublisher{}
	sink := newNATSSink(pub, "ppg.display", nil)

	require.NoError(t, sink.Publish(testDisplay()))
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "ppg.display", pub.subjects[0])

	var fields map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &fields))
	assert.Equal(t, "s-1", fields["session_id"])

	published, failed := sink.Stats()
	assert.Equal(t, uint64(1), published)
	assert.Equal(t, uint64(0), failed)
}

func TestNATSSinkPublishError(t *testing.T) {
	cause := errors.New("connection closed")
	sink := newNATSSink(&fakePublisher{err: cause}, "ppg.display", MsgpackCodec{})

	err := sink.Publish(testDisplay())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	published, failed := sink.Stats()
	assert.Equal(t, uint64(0), published)
	assert.Equal(t, uint64(1), failed)
}
