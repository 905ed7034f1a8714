package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Test HealthResponse struct
func TestHealthResponse_Struct(t *testing.T) {
	now := time.Now()
	response := HealthResponse{
		Status:    "ok",
		Timestamp: now,
		Version:   "1.0.0",
		Services: Services{
			Database: "ok",
			Redis:    "ok",
		},
	}

	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, now, response.Timestamp)
	assert.Equal(t, "1.0.0", response.Version)
	assert.Equal(t, "ok", response.Services.Database)
	assert.Equal(t, "ok", response.Services.Redis)
}

// Test JSON marshaling
func TestHealthResponse_JSONMarshaling(t *testing.T) {
	response := HealthResponse{
		Status:    "degraded",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Services: Services{
			Database: "ok",
			Redis:    "error",
		},
	}

	jsonData, err := json.Marshal(response)
	assert.NoError(t, err)
	assert.Contains(t, string(jsonData), "degraded")

	var unmarshaled HealthResponse
	err = json.Unmarshal(jsonData, &unmarshaled)
	assert.NoError(t, err)
	assert.Equal(t, response.Status, unmarshaled.Status)
	assert.Equal(t, response.Services.Redis, unmarshaled.Services.Redis)
}
