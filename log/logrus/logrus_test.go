package logrus

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unkn0wn-root/querycache"
)

func TestLoggerForwardsLevelsAndFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	base.SetOutput(io.Discard)
	l := New(base)

	boom := errors.New("boom")
	l.Warn("fetch failed", querycache.Fields{"key": "todos/1", "err": boom})
	l.Debug("plain", nil)

	require.Len(t, hook.AllEntries(), 2)
	first := hook.AllEntries()[0]
	assert.Equal(t, logrus.WarnLevel, first.Level)
	assert.Equal(t, "fetch failed", first.Message)
	assert.Equal(t, "todos/1", first.Data["key"])
	assert.Equal(t, boom, first.Data[logrus.ErrorKey])
	assert.Equal(t, "querycache", first.Data["component"])

	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
