package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/catfinder/internal/fsutil"
)

// Environment variables that override the WiGLE credentials in the file.
const (
	EnvWigleUser  = "WIGLE_USER"
	EnvWigleToken = "WIGLE_TOKEN"
)

// Defaults applied by the Get* accessors.
const (
	DefaultSerialPort      = "/dev/ttyUSB0"
	DefaultBaudRate        = 115200
	DefaultDBPath          = "catfinder.db"
	DefaultListen          = ":8080"
	DefaultWigleAPIURL     = "https://api.wigle.net/api/v2"
	DefaultMapWindow       = 24 * time.Hour
	DefaultViewHalfSideM   = 250.0
	DefaultLocateMinAPs    = 1
	DefaultWigleAreaRadius = 1.0 // km
)

const maxConfigSize = 1 * 1024 * 1024

// GatewayConfig is the JSON configuration of the station gateway. Every field
// is optional; omitted fields fall back to the defaults returned by the
// matching Get* method, so partial files are safe.
type GatewayConfig struct {
	// Serial link to the station board
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`

	// Storage and HTTP
	DBPath *string `json:"db_path,omitempty"`
	Listen *string `json:"listen,omitempty"`

	// Station behaviour
	StationWaitTime  *int    `json:"station_wait_time,omitempty"` // seconds, sent in every reply
	BeaconInterval   *string `json:"beacon_interval,omitempty"`   // duration string, empty disables
	AcceptForeignUID *bool   `json:"accept_foreign_uid,omitempty"`

	// Location lookup
	WigleUser       *string  `json:"wigle_user,omitempty"`
	WigleToken      *string  `json:"wigle_token,omitempty"`
	WigleAPIURL     *string  `json:"wigle_api_url,omitempty"`
	WigleAreaRadius *float64 `json:"wigle_area_radius_km,omitempty"`
	LocateMinAPs    *int     `json:"locate_min_aps,omitempty"`

	// Map view
	MapWindow     *string  `json:"map_window,omitempty"` // duration string like "24h"
	ViewHalfSideM *float64 `json:"view_half_side_m,omitempty"`
}

// LoadGatewayConfig reads path from the OS filesystem and applies the
// environment overrides.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	cfg, err := LoadGatewayConfigFS(fsutil.OSFileSystem{}, path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// LoadGatewayConfigFS loads and validates a config file from fsys. The file
// must have a .json extension and be at most 1 MiB.
func LoadGatewayConfigFS(fsys fsutil.FileSystem, path string) (*GatewayConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &GatewayConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides the WiGLE credentials with non-empty values from getenv.
func (c *GatewayConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvWigleUser); v != "" {
		c.WigleUser = &v
	}
	if v := getenv(EnvWigleToken); v != "" {
		c.WigleToken = &v
	}
}

// Validate checks the fields that are set.
func (c *GatewayConfig) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.StationWaitTime != nil && (*c.StationWaitTime < 0 || *c.StationWaitTime > 0xFFFF) {
		return fmt.Errorf("station_wait_time must be between 0 and 65535 seconds, got %d", *c.StationWaitTime)
	}
	if c.BeaconInterval != nil && *c.BeaconInterval != "" {
		d, err := time.ParseDuration(*c.BeaconInterval)
		if err != nil {
			return fmt.Errorf("invalid beacon_interval '%s': %w", *c.BeaconInterval, err)
		}
		if d < time.Second {
			return fmt.Errorf("beacon_interval must be at least 1s, got %s", d)
		}
	}
	if c.MapWindow != nil && *c.MapWindow != "" {
		if _, err := time.ParseDuration(*c.MapWindow); err != nil {
			return fmt.Errorf("invalid map_window '%s': %w", *c.MapWindow, err)
		}
	}
	if c.LocateMinAPs != nil && (*c.LocateMinAPs < 1 || *c.LocateMinAPs > 5) {
		return fmt.Errorf("locate_min_aps must be between 1 and 5, got %d", *c.LocateMinAPs)
	}
	if c.ViewHalfSideM != nil && *c.ViewHalfSideM <= 0 {
		return fmt.Errorf("view_half_side_m must be positive, got %f", *c.ViewHalfSideM)
	}
	if c.WigleAreaRadius != nil && *c.WigleAreaRadius <= 0 {
		return fmt.Errorf("wigle_area_radius_km must be positive, got %f", *c.WigleAreaRadius)
	}
	return nil
}

func (c *GatewayConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return DefaultSerialPort
	}
	return *c.SerialPort
}

func (c *GatewayConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return DefaultBaudRate
	}
	return *c.BaudRate
}

func (c *GatewayConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

func (c *GatewayConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetStationWaitTime returns the wait time in seconds; zero by default.
func (c *GatewayConfig) GetStationWaitTime() uint16 {
	if c.StationWaitTime == nil {
		return 0
	}
	return uint16(*c.StationWaitTime)
}

// GetBeaconInterval returns zero when beaconing is disabled.
func (c *GatewayConfig) GetBeaconInterval() time.Duration {
	if c.BeaconInterval == nil || *c.BeaconInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.BeaconInterval)
	if err != nil {
		return 0
	}
	return d
}

func (c *GatewayConfig) GetAcceptForeignUID() bool {
	return c.AcceptForeignUID != nil && *c.AcceptForeignUID
}

func (c *GatewayConfig) GetWigleUser() string {
	if c.WigleUser == nil {
		return ""
	}
	return *c.WigleUser
}

func (c *GatewayConfig) GetWigleToken() string {
	if c.WigleToken == nil {
		return ""
	}
	return *c.WigleToken
}

// WigleEnabled reports whether both credentials are present.
func (c *GatewayConfig) WigleEnabled() bool {
	return c.GetWigleUser() != "" && c.GetWigleToken() != ""
}

func (c *GatewayConfig) GetWigleAPIURL() string {
	if c.WigleAPIURL == nil || *c.WigleAPIURL == "" {
		return DefaultWigleAPIURL
	}
	return *c.WigleAPIURL
}

// GetWigleAreaRadius returns the prefetch radius in kilometres.
func (c *GatewayConfig) GetWigleAreaRadius() float64 {
	if c.WigleAreaRadius == nil {
		return DefaultWigleAreaRadius
	}
	return *c.WigleAreaRadius
}

func (c *GatewayConfig) GetLocateMinAPs() int {
	if c.LocateMinAPs == nil {
		return DefaultLocateMinAPs
	}
	return *c.LocateMinAPs
}

func (c *GatewayConfig) GetMapWindow() time.Duration {
	if c.MapWindow == nil || *c.MapWindow == "" {
		return DefaultMapWindow
	}
	d, err := time.ParseDuration(*c.MapWindow)
	if err != nil {
		return DefaultMapWindow
	}
	return d
}

func (c *GatewayConfig) GetViewHalfSideM() float64 {
	if c.ViewHalfSideM == nil {
		return DefaultViewHalfSideM
	}
	return *c.ViewHalfSideM
}
