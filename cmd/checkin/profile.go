package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds the connection settings for one client device.
type Profile struct {
	BaseURL      string `yaml:"base_url"`
	SessionToken string `yaml:"session_token"`
	ClientID     int64  `yaml:"client_id"`
	// Origin scopes fingerprint credentials; it defaults to BaseURL.
	Origin string `yaml:"origin"`
}

// LoadProfile reads a YAML profile. A missing file yields an empty profile.
func LoadProfile(path string) (Profile, error) {
	var profile Profile
	if path == "" {
		return profile, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return profile, nil
		}
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return profile, nil
}

func (p Profile) origin() string {
	if p.Origin != "" {
		return p.Origin
	}
	return p.BaseURL
}
