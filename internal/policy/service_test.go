package policy

import (
	"context"
	"testing"

	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// fakeLegacy stands in for the legacy policy administration system
type fakeLegacy struct {
	coverage float64
	active   bool
	known    map[types.ID]bool
	lookups  int
}

func (f *fakeLegacy) Lookup(ctx context.Context, policyID types.ID) (float64, bool, error) {
	f.lookups++
	if !f.known[policyID] {
		return 0, false, errors.NotFound("policy", policyID.String())
	}
	return f.coverage, f.active, nil
}

func testVehicle() Vehicle {
	return Vehicle{Make: "Honda", Model: "Civic", Year: 2021, LicensePlate: "KTM-4821"}
}

// TestNewPolicyValidation verifies required fields at creation
func TestNewPolicyValidation(t *testing.T) {
	customerID := types.NewID()

	tests := []struct {
		name        string
		customerID  types.ID
		coverage    float64
		vehicle     Vehicle
		expectError bool
	}{
		{"Valid policy", customerID, 10000, testVehicle(), false},
		{"Zero customer", types.ID(""), 10000, testVehicle(), true},
		{"Zero coverage", customerID, 0, testVehicle(), true},
		{"Missing make", customerID, 10000, Vehicle{Model: "Civic", Year: 2021, LicensePlate: "KTM-4821"}, true},
		{"Missing model", customerID, 10000, Vehicle{Make: "Honda", Year: 2021, LicensePlate: "KTM-4821"}, true},
		{"Year out of range", customerID, 10000, Vehicle{Make: "Honda", Model: "Civic", Year: 1850, LicensePlate: "KTM-4821"}, true},
		{"Missing plate", customerID, 10000, Vehicle{Make: "Honda", Model: "Civic", Year: 2021}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.customerID, tt.coverage, tt.vehicle)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if p.VehicleMake != tt.vehicle.Make || p.VehicleModel != tt.vehicle.Model ||
				p.VehicleYear != tt.vehicle.Year || p.LicensePlate != tt.vehicle.LicensePlate {
				t.Error("Expected vehicle details to be recorded on the policy")
			}
		})
	}
}

// TestServiceLocalFirst verifies the platform store answers before the legacy system
func TestServiceLocalFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	legacy := &fakeLegacy{coverage: 99999, active: true}
	svc := NewService(repo, legacy)

	p, err := New(types.NewID(), 25000, testVehicle())
	if err != nil {
		t.Fatalf("failed to create policy: %v", err)
	}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("failed to save policy: %v", err)
	}

	coverage, err := svc.CoverageAmount(ctx, p.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if coverage != 25000 {
		t.Errorf("Expected coverage 25000, got %.0f", coverage)
	}
	if legacy.lookups != 0 {
		t.Errorf("Expected no legacy lookups for a local policy, got %d", legacy.lookups)
	}

	active, err := svc.Active(ctx, p.ID)
	if err != nil || !active {
		t.Errorf("Expected active policy, got active=%v err=%v", active, err)
	}
}

// TestServiceLegacyFallback verifies the fallback on local miss
func TestServiceLegacyFallback(t *testing.T) {
	ctx := context.Background()
	legacyID := types.NewID()
	legacy := &fakeLegacy{
		coverage: 50000,
		active:   false,
		known:    map[types.ID]bool{legacyID: true},
	}
	svc := NewService(NewMemoryRepository(), legacy)

	coverage, err := svc.CoverageAmount(ctx, legacyID)
	if err != nil {
		t.Fatalf("Expected legacy fallback to answer, got %v", err)
	}
	if coverage != 50000 {
		t.Errorf("Expected coverage 50000, got %.0f", coverage)
	}

	active, err := svc.Active(ctx, legacyID)
	if err != nil {
		t.Fatalf("Expected legacy fallback to answer, got %v", err)
	}
	if active {
		t.Error("Expected lapsed legacy policy to report inactive")
	}

	// Unknown everywhere stays NotFound
	if _, err := svc.CoverageAmount(ctx, types.NewID()); !errors.IsNotFound(err) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

// TestServiceWithoutLegacy verifies behavior when no fallback is configured
func TestServiceWithoutLegacy(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), nil)

	if _, err := svc.CoverageAmount(ctx, types.NewID()); !errors.IsNotFound(err) {
		t.Errorf("Expected NotFound, got %v", err)
	}
	if _, err := svc.Active(ctx, types.NewID()); !errors.IsNotFound(err) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

// TestPolicyStatusTransitions verifies status effects on claim acceptance
func TestPolicyStatusTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)

	p, _ := New(types.NewID(), 10000, testVehicle())
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("failed to save policy: %v", err)
	}

	for _, status := range []Status{StatusLapsed, StatusCancelled} {
		if err := repo.UpdateStatus(ctx, p.ID, status); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		active, err := svc.Active(ctx, p.ID)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if active {
			t.Errorf("Expected %s policy to be inactive", status)
		}
	}
}
