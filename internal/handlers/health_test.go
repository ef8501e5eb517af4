package handlers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariyab/kariyab-backend/internal/handlers"
)

func TestHealthCheck_Liveness(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.get(t, "/api/health", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "Kariyab Backend", body["service"])
}

func TestHealthStatus_WithoutDatabase(t *testing.T) {
	app := fiber.New()
	h := handlers.NewHealthHandler("1.0.0")
	h.Storage = "In-Memory (Testing)"
	app.Get("/", h.Status)
	app.Get("/health", h.Live)

	ta := &testApp{app: app}

	resp, body := ta.get(t, "/", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "In-Memory (Testing)", body["storage"])
	// Record counts only appear when a database is attached
	_, hasDB := body["database"]
	assert.False(t, hasDB)

	resp, live := ta.get(t, "/health", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "healthy", live["status"])
}
