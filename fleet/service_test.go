package fleet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechEagle-Innovations/skyops-go/api"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zerolog.Nop()
	client, err := api.New(api.Config{BaseURL: server.URL, Logger: &logger})
	require.NoError(t, err)
	return NewService(client)
}

func TestDronesAtHub(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drone/all-drones-at-hub", r.URL.Path)
		json.NewEncoder(w).Encode([]Drone{
			{ID: "d1", Name: "Falcon-1", Model: "X4", Status: "idle", BatteryLevel: 87},
			{ID: "d2", Name: "Falcon-2", Model: "X4", Status: "in-flight", BatteryLevel: 54},
		})
	}))

	drones, err := svc.DronesAtHub(context.Background())
	require.NoError(t, err)
	require.Len(t, drones, 2)
	assert.Equal(t, "Falcon-1", drones[0].Name)
	assert.Equal(t, 54.0, drones[1].BatteryLevel)
}

func TestFlightHistory_UnwrapsEnvelope(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fleet/flight-history/d1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "success",
			"message": "flight history fetched",
			"data": []FlightHistoryItem{
				{ID: "f1", DroneID: "d1", OrderNo: "ORD-42", IsCompleted: true},
			},
		})
	}))

	flights, err := svc.FlightHistory(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, "ORD-42", flights[0].OrderNo)
	assert.True(t, flights[0].IsCompleted)
}

func TestFlightHistory_EscapesDroneID(t *testing.T) {
	var gotPath string
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(map[string]any{"data": []FlightHistoryItem{}})
	}))

	_, err := svc.FlightHistory(context.Background(), "d1/../../admin")
	require.NoError(t, err)
	assert.Equal(t, "/fleet/flight-history/d1%2F..%2F..%2Fadmin", gotPath)
}
