package writer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/lukehollenback/neutrino/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, frame string) stream.Message {
	t.Helper()

	msg, err := stream.ParseMessage([]byte(frame))
	require.NoError(t, err)

	return msg
}

func TestWritesTickerRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	service := New(path)

	chStarted, err := service.Start()
	require.NoError(t, err)
	<-chStarted

	service.Handle(parse(t, `{"type":"ticker","product_id":"BTC-USD","price":"29001.50","time":"2021-01-01T00:00:01Z"}`))
	service.Handle(parse(t, `{"type":"heartbeat","product_id":"BTC-USD","sequence":4}`))
	service.Handle(parse(t, `{"type":"ticker","product_id":"ETH-USD","price":"730.1","time":"2021-01-01T00:00:02Z"}`))

	chStopped, err := service.Stop()
	require.NoError(t, err)
	<-chStopped

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{TimestampKey, ProductKey, PriceKey},
		{"2021-01-01T00:00:01Z", "BTC-USD", "29001.5"},
		{"2021-01-01T00:00:02Z", "ETH-USD", "730.1"},
	}, rows)
}

func TestIgnoresMessagesWhileStopped(t *testing.T) {
	service := New(filepath.Join(t.TempDir(), "ticks.csv"))

	service.Handle(parse(t, `{"type":"ticker","product_id":"BTC-USD","price":"1"}`))

	_, err := service.Stop()
	assert.Error(t, err)
}

func TestStartFailsOnBadPath(t *testing.T) {
	service := New(filepath.Join(t.TempDir(), "missing", "ticks.csv"))

	_, err := service.Start()
	assert.Error(t, err)
}
