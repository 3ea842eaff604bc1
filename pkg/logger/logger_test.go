package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestErrorCarriesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: ParseLevel("debug"), Output: buf, Format: "json"})

	ctx := log.WithRequestID(context.Background(), "req-12345")
	ctx = log.WithOrderID(ctx, "order-9")
	ctx = log.WithActorRole(ctx, "admin")
	log.Error(ctx, "capture failed", errors.New("gateway timeout"))

	out := buf.String()
	for _, field := range []string{`"request_id":"req-12345"`, `"order_id":"order-9"`, `"actor_role":"admin"`, `"stack"`, `"service":"api"`, `"error":"gateway timeout"`} {
		require.Contains(t, out, field)
	}
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "api", Output: buf, Format: "json"}).Warn(context.Background(), "quiet")
	require.NotContains(t, buf.String(), `"stack"`)

	buf.Reset()
	New(Options{ServiceName: "api", Output: buf, Format: "json", WarnStack: true}).Warn(context.Background(), "loud")
	require.Contains(t, buf.String(), `"stack"`)
}

func TestWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: "json"})

	parent := context.Background()
	child := log.WithFields(parent, map[string]any{"event": "capture_approved"})
	log.Info(parent, "parent")
	require.NotContains(t, buf.String(), "capture_approved")

	log.Info(child, "child")
	require.Contains(t, buf.String(), "capture_approved")
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: "json", Level: zerolog.WarnLevel})
	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden too")
	require.Empty(t, buf.String())
}

func TestConsoleFormatIsNotJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "api", Output: buf, Format: "console"}).Info(context.Background(), "order shipped")
	require.Contains(t, buf.String(), "order shipped")
	require.NotContains(t, buf.String(), `"message"`)
}

func TestNilAndNopLoggersAreSafe(t *testing.T) {
	var log *Logger
	ctx := log.WithOrderID(context.Background(), "order-1")
	require.NotNil(t, ctx)
	log.Info(ctx, "dropped")
	log.Warn(ctx, "dropped")
	log.Error(ctx, "dropped", errors.New("x"))

	nop := Nop()
	nop.Error(nop.WithUserID(context.TODO(), "u1"), "dropped", nil)
}

func TestParseLevelDefaults(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}
