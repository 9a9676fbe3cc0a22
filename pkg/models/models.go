// Package models describes the catalog of generation models exposed to
// canvas nodes.
package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model types
const (
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeText  = "text"
)

// IsValidType reports whether t is a known model type
func IsValidType(t string) bool {
	switch t {
	case TypeImage, TypeVideo, TypeAudio, TypeText:
		return true
	}
	return false
}

// Model is one entry in the generation model catalog
type Model struct {
	// ID of the catalog row
	ID string `json:"id" yaml:"id"`

	// Identifier is the gateway model slug (e.g. "google/nano-banana")
	Identifier string `json:"identifier" yaml:"identifier"`

	// Name shown in the UI
	Name string `json:"name" yaml:"name"`

	// Type is image, video, audio, or text
	Type string `json:"type" yaml:"type"`

	// Provider hosting the model
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// CreditsCost charged per invocation
	CreditsCost int `json:"credits_cost" yaml:"credits_cost"`

	// IsActive controls whether the model is offered
	IsActive bool `json:"is_active" yaml:"is_active"`

	// Parameters lists the tunable knobs the model accepts
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// catalogFile is the on-disk YAML shape for seeding the catalog
type catalogFile struct {
	Models []Model `yaml:"models"`
}

// LoadCatalog reads a model catalog from a YAML file
func LoadCatalog(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses YAML catalog content
func ParseCatalog(data []byte) ([]Model, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i, m := range file.Models {
		if m.Identifier == "" {
			return nil, fmt.Errorf("catalog entry %d is missing an identifier", i)
		}
		if !IsValidType(m.Type) {
			return nil, fmt.Errorf("catalog entry %q has invalid type %q", m.Identifier, m.Type)
		}
	}
	return file.Models, nil
}
