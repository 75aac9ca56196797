// ABOUTME: Tests for the feed client
// ABOUTME: Connects to a real monitor server through httptest
package client

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbanbridge/vbanbridge-go/internal/server"
	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
)

type staticSource bridge.Stats

func (s staticSource) Stats() bridge.Stats { return bridge.Stats(s) }

func quiet() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{ServerAddr: "localhost:9680"})
	assert.Equal(t, "/ws", c.config.Path)
	assert.NotNil(t, c.Stats)
	assert.NoError(t, c.Close(), "close before connect is a no-op")
}

func TestConnectReceivesHelloAndStats(t *testing.T) {
	srv := server.New(server.Config{Interval: 10 * time.Millisecond, Logger: quiet()},
		staticSource{Stream: "Mic", State: "running", PacketsSent: 3, SampleRate: 44100})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := NewClient(Config{ServerAddr: strings.TrimPrefix(ts.URL, "http://"), Logger: quiet()})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	assert.Equal(t, "Mic", c.Hello.Stream)
	assert.Equal(t, 44100, c.Hello.SampleRate)

	select {
	case st := <-c.Stats:
		assert.Equal(t, uint64(3), st.PacketsSent)
	case <-time.After(2 * time.Second):
		t.Fatal("no stats received")
	}

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not end after close")
	}

	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	srv.Shutdown(sctx)
}

func TestConnectFailure(t *testing.T) {
	c := NewClient(Config{ServerAddr: "127.0.0.1:1", Logger: quiet()})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.Connect(ctx))
}
