// Package client is the kiosk-side API client: fixed 10 second timeout,
// no retries, errors surfaced directly to the operator.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	rest *resty.Client
}

func New(baseURL, apiKey string) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("api-key", apiKey).
		SetHeader("Content-Type", "application/json")
	return &Client{rest: rest}
}

type MachineConfig struct {
	MachineName      string `json:"machine_name"`
	Motherboard      string `json:"motherboard"`
	Memory           string `json:"memory"`
	Storage          string `json:"storage"`
	StateCleanliness string `json:"state_cleanliness"`
	LastChecked      string `json:"last_checked"`
	LabID            string `json:"lab_id"`
}

type NewMachineConfig struct {
	MachineConfig
	MachineKey string `json:"machine_key"`
}

type LabInfo struct {
	LabID   string `json:"lab_id"`
	LabName string `json:"lab_name"`
	Classes string `json:"classes"`
}

type NewSession struct {
	StudentName  string  `json:"student_name"`
	Password     string  `json:"password"`
	ClassVar     string  `json:"class_var"`
	SessionStart string  `json:"session_start"`
	CPUUsage     float64 `json:"cpu_usage"`
	RAMUsage     float64 `json:"ram_usage"`
	CPUTemp      float64 `json:"cpu_temp"`
}

type apiError struct {
	Error string `json:"error"`
}

func apiErr(resp *resty.Response) error {
	var body apiError
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		return fmt.Errorf("%s (status %d)", body.Error, resp.StatusCode())
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode())
}

// GetMachineConfig returns nil without error when the machine is not
// registered yet.
func (c *Client) GetMachineConfig(machineKey string) (*MachineConfig, error) {
	var out MachineConfig
	resp, err := c.rest.R().
		SetResult(&out).
		Get("/machine_config/" + machineKey)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, apiErr(resp)
	}
	return &out, nil
}

// GetLab fetches the lab summary; the kiosk persists the lab's name and
// classes locally alongside the machine key.
func (c *Client) GetLab(labID string) (*LabInfo, error) {
	var out LabInfo
	resp, err := c.rest.R().
		SetResult(&out).
		Get("/lab/" + labID)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiErr(resp)
	}
	return &out, nil
}

func (c *Client) RegisterMachine(cfg NewMachineConfig) error {
	resp, err := c.rest.R().
		SetBody(cfg).
		Post("/machine_config/new_machine")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiErr(resp)
	}
	return nil
}

func (c *Client) UpdateMachineConfig(machineKey string, cfg MachineConfig) error {
	resp, err := c.rest.R().
		SetBody(cfg).
		Patch("/machine_config/update/" + machineKey)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiErr(resp)
	}
	return nil
}

func (c *Client) PostSession(machineKey string, s NewSession) error {
	resp, err := c.rest.R().
		SetBody(s).
		Post("/session/new/" + machineKey)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiErr(resp)
	}
	return nil
}
