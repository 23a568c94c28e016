package codec

import (
	"fmt"
	"os"

	"prokat/internal/models"

	"gopkg.in/yaml.v2"
)

type seedFile struct {
	Items []models.RentalItem `yaml:"items"`
}

// LoadSeed reads the startup item list from a YAML file.
func LoadSeed(path string) ([]models.RentalItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	items := make([]models.RentalItem, 0, len(seed.Items))
	for _, item := range seed.Items {
		items = append(items, models.NewRentalItem(item.ItemType, item.Name, item.Price, item.Details))
	}
	return items, nil
}
