package models

import "time"

// RideID is the stable identifier assigned to a ride when it is posted.
type RideID int64

type VehicleType string

const (
	VehicleBike VehicleType = "Bike"
	VehicleCar  VehicleType = "Car"
)

func (v VehicleType) Valid() bool { return v == VehicleBike || v == VehicleCar }

type Ride struct {
	ID          RideID      `json:"id" yaml:"id"`
	EmployeeID  string      `json:"employee_id" yaml:"employee_id"`
	VehicleType VehicleType `json:"vehicle_type" yaml:"vehicle_type"`
	VehicleNo   string      `json:"vehicle_no" yaml:"vehicle_no"`
	VacantSeats int         `json:"vacant_seats" yaml:"vacant_seats"` // never negative
	Time        Clock       `json:"time" yaml:"time"`
	PickupPoint string      `json:"pickup_point" yaml:"pickup_point"`
	Destination string      `json:"destination" yaml:"destination"`
}

// Snapshot is the serialisable form of one session's carpool state.
type Snapshot struct {
	Rides  []Ride   `json:"rides"`
	Posted []string `json:"posted"`
	Booked []string `json:"booked"`
	NextID RideID   `json:"next_id"`
}

type EventType string

const (
	EventRidePosted EventType = "ride_posted"
	EventRideBooked EventType = "ride_booked"
)

type RideEvent struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	EmployeeID string    `json:"employee_id"`
	Ride       Ride      `json:"ride"`
	At         time.Time `json:"at"`
}
