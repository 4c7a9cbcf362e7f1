package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	cblog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/streamy/internal/events"
	logginginfra "github.com/alexisbeaulieu97/streamy/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

func TestLoggingSubscriberIncludesCorrelationID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger, err := logginginfra.New(logginginfra.Options{
		Writer:    buf,
		Level:     "info",
		Layer:     "test",
		Component: "publisher",
		Formatter: cblog.JSONFormatter,
	})
	require.NoError(t, err)

	bus := events.NewBus()
	NewLoggingSubscriber(logger).Attach(bus)

	ctx := logginginfra.WithCorrelationID(context.Background(), "abc-123")
	bus.Publish(ctx, events.Event{
		Kind:       events.KindWorkflowStarted,
		InstanceID: "inst-1",
		Data:       wfvalue.Map(map[string]wfvalue.Value{"pipeline": wfvalue.String("demo")}),
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "workflow event", entry["msg"])
	require.Equal(t, string(events.KindWorkflowStarted), entry["event_kind"])
	require.Equal(t, "abc-123", entry["correlation_id"])
	require.Equal(t, "demo", entry["pipeline"])
}

func TestLoggingSubscriberIncludesStepID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger, err := logginginfra.New(logginginfra.Options{
		Writer:    buf,
		Level:     "info",
		Layer:     "test",
		Component: "publisher",
		Formatter: cblog.JSONFormatter,
	})
	require.NoError(t, err)

	bus := events.NewBus()
	NewLoggingSubscriber(logger).Attach(bus)

	bus.Publish(context.Background(), events.Event{
		Kind:       events.KindStepComplete,
		InstanceID: "inst-1",
		StepID:     "step-a",
		Data:       wfvalue.Null(),
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "step-a", entry["step_id"])
}

func TestLoggingSubscriberDetach(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger, err := logginginfra.New(logginginfra.Options{Writer: buf, Level: "info", Formatter: cblog.JSONFormatter})
	require.NoError(t, err)

	bus := events.NewBus()
	sub := NewLoggingSubscriber(logger).Attach(bus)
	sub.Unsubscribe()

	bus.Publish(context.Background(), events.Event{Kind: events.KindWorkflowStarted, Data: wfvalue.Null()})
	require.Empty(t, buf.Bytes())
}
