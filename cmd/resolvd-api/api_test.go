package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/resolvd/resolvd/pkg/channels/gochannel"
	"github.com/resolvd/resolvd/pkg/eventbus"
	"github.com/resolvd/resolvd/pkg/events"
	"github.com/resolvd/resolvd/pkg/persistence/memory"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Logf("Failed to close event bus: %v", err)
		}
	})

	api := NewAPI(logger, memory.NewPersistence(), bus)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Resolvd API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartAuditConsumer_LogsPublishedEvents(t *testing.T) {
	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Logf("Failed to close event bus: %v", err)
		}
	})

	auditLogger := slog.New(slog.NewTextHandler(&logs, nil))
	require.NoError(t, startAuditConsumer(t.Context(), bus, auditLogger, otel.Tracer("test")))

	event := events.NewAuditEvent(events.FlowCreatedEvent, "flow", "flow-1", "agent-1", nil)
	require.NoError(t, bus.Publish(t.Context(), "flow-1", event))

	assert.Contains(t, logs.String(), "audit event")
	assert.Contains(t, logs.String(), "flow.created")
	assert.Contains(t, logs.String(), "agent-1")
}

func TestAPI_CreateAndListFlows(t *testing.T) {
	app := setupTestApp(t)

	payload, err := json.Marshal(map[string]any{
		"name":     "VPN will not connect",
		"category": "network",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/flows", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "agent-1")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	listReq := httptest.NewRequest(http.MethodGet, "/flows", nil)
	listResp, err := app.Test(listReq)
	require.NoError(t, err)

	defer func() {
		err := listResp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	var listBody struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}

	err = json.NewDecoder(listResp.Body).Decode(&listBody)
	require.NoError(t, err)
	require.Len(t, listBody.Data, 1)
	assert.Equal(t, "VPN will not connect", listBody.Data[0].Name)
}
