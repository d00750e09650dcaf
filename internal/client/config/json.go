package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the client config file. Timeout accepts
// "10s" as well as integer nanoseconds.
type JsonConfig struct {
	ServerURL   string         `json:"server_url"`
	SessionFile string         `json:"session_file"`
	Timeout     timex.Duration `json:"timeout"`
}

// parseJSON overlays cfg with the non-empty values found in path.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.SessionFile != "" {
		cfg.SessionFile = jc.SessionFile
	}
	if jc.Timeout.IsSet() {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}
