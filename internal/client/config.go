package client

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
)

// LocalConfig is the kiosk's persisted state. Its presence (with a
// machine key) decides between the login path and the registration path
// at startup.
type LocalConfig struct {
	MachineKey  string `json:"machine_key"`
	MachineName string `json:"machine_name"`
	LabName     string `json:"lab_name"`
	Classes     string `json:"classes"`
}

// ErrNoConfig is returned when config.json does not exist or is
// unreadable; the kiosk should run the registration flow.
var ErrNoConfig = errors.New("no local machine config")

func LoadConfig(path string) (*LocalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrNoConfig
	}
	var cfg LocalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrNoConfig
	}
	return &cfg, nil
}

func SaveConfig(path string, cfg *LocalConfig) error {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// NewMachineKey issues the machine's long-lived random token: 32 random
// bytes, hex-encoded to 64 characters.
func NewMachineKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
