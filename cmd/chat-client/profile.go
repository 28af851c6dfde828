package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is what the client remembers between runs.
type Profile struct {
	Server       string `yaml:"server"`
	Email        string `yaml:"email"`
	AccessToken  string `yaml:"access_token,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	Push         bool   `yaml:"push"`
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "profile.yaml"
	}
	return filepath.Join(dir, "libraryconnect", "profile.yaml")
}

// loadProfile returns an empty profile when the file does not exist yet.
func loadProfile(path string) (*Profile, error) {
	p := &Profile{Push: true}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

func saveProfile(path string, p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
