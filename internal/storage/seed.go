package storage

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/share-commute/internal/models"
)

//go:embed fixtures/rides.json
var fixtures embed.FS

// LoadSeed reads the read-only ride fixture every new session starts from.
// JSON and YAML files are accepted; an empty path selects the built-in fixture.
func LoadSeed(path string) ([]models.Ride, error) {
	if path == "" {
		b, err := fixtures.ReadFile("fixtures/rides.json")
		if err != nil {
			return nil, err
		}
		return decodeSeed(b, ".json")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	rides, err := decodeSeed(b, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return rides, nil
}

func decodeSeed(b []byte, ext string) ([]models.Ride, error) {
	var rides []models.Ride
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &rides); err != nil {
			return nil, err
		}
	case ".json", "":
		if err := json.Unmarshal(b, &rides); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}
	for i, r := range rides {
		if r.EmployeeID == "" {
			return nil, fmt.Errorf("ride %d: missing employee_id", i)
		}
		if !r.VehicleType.Valid() {
			return nil, fmt.Errorf("ride %d: unknown vehicle_type %q", i, r.VehicleType)
		}
		if r.VacantSeats < 0 {
			return nil, fmt.Errorf("ride %d: negative vacant_seats", i)
		}
	}
	return rides, nil
}
