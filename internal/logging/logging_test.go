// ABOUTME: Tests for logger setup
// ABOUTME: Checks level parsing, formatters and file output
package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevelAndFormat(t *testing.T) {
	logger := logrus.New()
	closer, err := Setup(logger, Options{Level: "debug", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestSetupRejectsBadValues(t *testing.T) {
	_, err := Setup(logrus.New(), Options{Level: "loud"})
	assert.Error(t, err)

	_, err = Setup(logrus.New(), Options{Format: "xml"})
	assert.Error(t, err)
}

func TestSetupQuietWritesOnlyToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := logrus.New()

	closer, err := Setup(logger, Options{File: path, Quiet: true})
	require.NoError(t, err)

	logger.WithField("stream", "Mic").Info("session started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session started")
	assert.Contains(t, string(data), "stream=Mic")
}

func TestSetupQuietWithoutFileDiscards(t *testing.T) {
	logger := logrus.New()
	_, err := Setup(logger, Options{Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, io.Discard, logger.Out)
}
