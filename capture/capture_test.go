package capture

import (
	"bytes"
	"os"
	"testing"

	"github.com/greedyvox/netsync/network"
	"github.com/greedyvox/netsync/replication"
	"github.com/greedyvox/netsync/shared/netconfig"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.Record(Record{Name: "a", Delivery: "reliable", To: []uint64{1}, Size: 3, Payload: []byte{1, 2, 3}}))
	require.NoError(t, w.Record(Record{Name: "b", Broadcast: true, Size: 1, Payload: []byte{9}}))
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())
	assert.Error(t, w.Record(Record{}))

	records, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Name)
	assert.Equal(t, []byte{1, 2, 3}, records[0].Payload)
	assert.True(t, records[1].Broadcast)
}

func TestCreateWritesFile(t *testing.T) {
	w, path, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Record(Record{Name: "x", Size: 2, Payload: []byte{0, 1}}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := ReadAll(f)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestTransportRecordsSuccessfulSends(t *testing.T) {
	hub := network.NewHub(network.HubOptions{})
	server := hub.Connect(replication.ServerID)
	hub.Connect(1)
	hub.Connect(2)

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	tr := NewTransport(server, w, zerolog.Nop())

	require.NoError(t, tr.SendTo(1, "one", []byte{1, 2}, netconfig.Reliable))
	require.NoError(t, tr.SendToMany([]replication.ObserverID{1, 2}, "many", []byte{3}, netconfig.UnreliableSequenced))
	require.NoError(t, tr.SendToAll("all", []byte{4, 5, 6}, netconfig.ReliableSequenced, 2))
	assert.Error(t, tr.SendTo(7, "missing", nil, netconfig.Reliable))
	require.NoError(t, w.Close())

	records, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []uint64{1}, records[0].To)
	assert.Equal(t, "reliable", records[0].Delivery)
	assert.Equal(t, []uint64{1, 2}, records[1].To)
	assert.True(t, records[2].Broadcast)
	assert.Equal(t, []uint64{2}, records[2].Except)

	summary := Summarize(records)
	assert.Equal(t, Summary{Frames: 2, Bytes: 2}, summary["many"])
	assert.Equal(t, Summary{Frames: 1, Bytes: 3}, summary["all"])
}
