// Package policy manages the insurance policies claims are filed against.
package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Status of a policy. Only active policies accept new claims.
type Status string

const (
	StatusActive    Status = "active"
	StatusLapsed    Status = "lapsed"
	StatusCancelled Status = "cancelled"
)

// Policy is an insurance policy record
type Policy struct {
	ID             types.ID  `json:"id"`
	PolicyNumber   string    `json:"policy_number"`
	CustomerID     types.ID  `json:"customer_id"`
	VehicleMake    string    `json:"vehicle_make"`
	VehicleModel   string    `json:"vehicle_model"`
	VehicleYear    int       `json:"vehicle_year"`
	LicensePlate   string    `json:"license_plate"`
	CoverageAmount float64   `json:"coverage_amount"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Vehicle describes the insured vehicle at policy creation
type Vehicle struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	LicensePlate string `json:"license_plate"`
}

// New creates a policy in the active state
func New(customerID types.ID, coverageAmount float64, vehicle Vehicle) (*Policy, error) {
	if customerID.IsZero() {
		return nil, fmt.Errorf("customer is required")
	}
	if coverageAmount <= 0 {
		return nil, fmt.Errorf("coverage amount must be positive")
	}
	if vehicle.Make == "" || vehicle.Model == "" {
		return nil, fmt.Errorf("vehicle make and model are required")
	}
	if vehicle.Year < 1900 || vehicle.Year > time.Now().Year()+1 {
		return nil, fmt.Errorf("vehicle year is out of range")
	}
	if vehicle.LicensePlate == "" {
		return nil, fmt.Errorf("license plate is required")
	}

	now := time.Now().UTC()
	return &Policy{
		ID:             types.NewID(),
		PolicyNumber:   generatePolicyNumber(),
		CustomerID:     customerID,
		VehicleMake:    vehicle.Make,
		VehicleModel:   vehicle.Model,
		VehicleYear:    vehicle.Year,
		LicensePlate:   vehicle.LicensePlate,
		CoverageAmount: coverageAmount,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Active reports whether the policy accepts new claims
func (p *Policy) Active() bool {
	return p.Status == StatusActive
}

// Repository defines the interface for policy persistence
type Repository interface {
	Save(ctx context.Context, p *Policy) error
	FindByID(ctx context.Context, id types.ID) (*Policy, error)
	FindByCustomer(ctx context.Context, customerID types.ID) ([]Policy, error)

	// FindAll returns every policy, newest first. Staff listing only.
	FindAll(ctx context.Context) ([]Policy, error)

	UpdateStatus(ctx context.Context, id types.ID, status Status) error
}

// generatePolicyNumber generates a unique human-readable policy number.
// Format: POL-XXXXXXXX (8 uppercase hex chars).
func generatePolicyNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "POL-" + strings.ToUpper(raw[:8])
}
