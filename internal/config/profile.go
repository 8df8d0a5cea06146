package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed store.yaml
var storeYAML []byte

// StoreProfile holds store-facing text and catalog taxonomy.
type StoreProfile struct {
	Name             string            `yaml:"name"`
	Greeting         string            `yaml:"greeting"`
	PrivacyPolicyURL string            `yaml:"privacy_policy_url"`
	StorePhones      []string          `yaml:"store_phones"`
	PickupPoints     []string          `yaml:"pickup_points"`
	Categories       []string          `yaml:"categories"`
	CategoryIDs      map[string]int    `yaml:"category_ids"`
	Synonyms         map[string]string `yaml:"synonyms"`
}

// LoadStoreProfile parses the embedded store profile.
func LoadStoreProfile() (*StoreProfile, error) {
	return ParseStoreProfile(storeYAML)
}

// ParseStoreProfile parses a store profile document.
func ParseStoreProfile(data []byte) (*StoreProfile, error) {
	var p StoreProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse store profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("store profile: name is required")
	}
	if len(p.PickupPoints) == 0 {
		return nil, fmt.Errorf("store profile: at least one pickup point is required")
	}
	return &p, nil
}
