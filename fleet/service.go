// Package fleet fetches drone and flight data for display. The data is
// inert from the client's perspective: no business rules are applied here.
package fleet

import (
	"context"
	"fmt"
	"net/url"

	"github.com/TechEagle-Innovations/skyops-go/api"
)

// Drone is one drone stationed at the operator's hub.
type Drone struct {
	ID           string  `json:"_id"`
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	Status       string  `json:"status"`
	BatteryLevel float64 `json:"battery_level"`
	HubID        string  `json:"hub_id"`
}

// FlightHistoryItem is one completed or aborted flight of a drone.
type FlightHistoryItem struct {
	ID                       string  `json:"_id"`
	DroneID                  string  `json:"drone_id"`
	LocalFlightID            string  `json:"localFlightId"`
	HubID                    string  `json:"hub_id"`
	OrderNo                  string  `json:"order_no"`
	OrderType                string  `json:"order_type"`
	OrderDestinationLocation string  `json:"order_destination_location"`
	StartLocation            string  `json:"start_location"`
	EndLocation              string  `json:"end_location"`
	Payload                  float64 `json:"payload"`
	TimeTaken                float64 `json:"time_taken"`
	FlightType               string  `json:"flight_type"`
	IsCompleted              bool    `json:"isCompleted"`
	IsAborted                bool    `json:"isAborted"`
	DateCreated              string  `json:"date_created"`
}

// flightHistoryEnvelope is the wrapper the fleet endpoints put around
// their payload.
type flightHistoryEnvelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Data    []FlightHistoryItem `json:"data"`
}

// Service issues fleet requests through the shared API client.
type Service struct {
	client *api.Client
}

// NewService creates a fleet Service on top of client.
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// DronesAtHub lists the drones stationed at the operator's hub.
func (s *Service) DronesAtHub(ctx context.Context) ([]Drone, error) {
	var drones []Drone
	if err := s.client.Get(ctx, "/drone/all-drones-at-hub", &drones); err != nil {
		return nil, err
	}
	return drones, nil
}

// FlightHistory lists past flights of the given drone, unwrapped from the
// response envelope.
func (s *Service) FlightHistory(ctx context.Context, droneID string) ([]FlightHistoryItem, error) {
	path := fmt.Sprintf("/fleet/flight-history/%s", url.PathEscape(droneID))

	var envelope flightHistoryEnvelope
	if err := s.client.Get(ctx, path, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}
