package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TrackingConfig represents the startup configuration for a tracking
// session. All fields are pointers so that a partial JSON file only
// overrides what it names; the Get* methods provide fallback defaults
// for everything else. Command-line flags take precedence over the
// file.
type TrackingConfig struct {
	// Capture params
	Source   *string  `json:"source,omitempty"`    // camera index or file path
	FPS      *float64 `json:"fps,omitempty"`       // capture rate override
	StartSec *float64 `json:"start_sec,omitempty"` // playback window start (file sources)
	EndSec   *float64 `json:"end_sec,omitempty"`   // playback window end (file sources)
	Preview  *bool    `json:"preview,omitempty"`

	// Backend params
	Backend   *string `json:"backend,omitempty"` // remote | yolo | synthetic
	ModelPath *string `json:"model_path,omitempty"`
	RemoteURL *string `json:"remote_url,omitempty"`
	Landmarks *string `json:"landmarks,omitempty"` // standard | coco | trunk | upper_body | lower_body

	// Output params
	Mode            *string  `json:"mode,omitempty"` // per-frame | per-block | display-only
	BlockSize       *int     `json:"block_size,omitempty"`
	DistanceFilter  *bool    `json:"distance_filter,omitempty"`
	FilterThreshold *float64 `json:"filter_threshold,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTrackingConfig returns a TrackingConfig with all fields set to
// nil.
func EmptyTrackingConfig() *TrackingConfig {
	return &TrackingConfig{}
}

// LoadTrackingConfig loads a TrackingConfig from a JSON file. The file
// is validated to ensure it has a .json extension and is under the max
// file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTrackingConfig(path string) (*TrackingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TrackingConfig) Validate() error {
	if c.FPS != nil && *c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %f", *c.FPS)
	}

	if c.BlockSize != nil && *c.BlockSize < 1 {
		return fmt.Errorf("block_size must be at least 1, got %d", *c.BlockSize)
	}

	if c.StartSec != nil && *c.StartSec < 0 {
		return fmt.Errorf("start_sec must be non-negative, got %f", *c.StartSec)
	}

	if c.StartSec != nil && c.EndSec != nil && *c.EndSec <= *c.StartSec {
		return fmt.Errorf("end_sec (%f) must be greater than start_sec (%f)", *c.EndSec, *c.StartSec)
	}

	if c.FilterThreshold != nil && *c.FilterThreshold < 0 {
		return fmt.Errorf("filter_threshold must be non-negative, got %f", *c.FilterThreshold)
	}

	if c.Backend != nil {
		switch *c.Backend {
		case "remote", "mediapipe", "yolo", "synthetic":
		default:
			return fmt.Errorf("unknown backend %q", *c.Backend)
		}
	}

	if c.Mode != nil {
		switch *c.Mode {
		case "per-frame", "per-block", "display-only":
		default:
			return fmt.Errorf("unknown mode %q", *c.Mode)
		}
	}

	return nil
}

// GetSource returns the source value or the default camera index.
func (c *TrackingConfig) GetSource() string {
	if c.Source == nil || *c.Source == "" {
		return "0"
	}
	return *c.Source
}

// GetFPS returns the fps override, or 0 meaning use the source rate.
func (c *TrackingConfig) GetFPS() float64 {
	if c.FPS == nil {
		return 0
	}
	return *c.FPS
}

// GetStartSec returns the playback window start or 0.
func (c *TrackingConfig) GetStartSec() float64 {
	if c.StartSec == nil {
		return 0
	}
	return *c.StartSec
}

// GetEndSec returns the playback window end, or 0 meaning unbounded.
func (c *TrackingConfig) GetEndSec() float64 {
	if c.EndSec == nil {
		return 0
	}
	return *c.EndSec
}

// GetPreview returns the preview value or the default.
func (c *TrackingConfig) GetPreview() bool {
	if c.Preview == nil {
		return false
	}
	return *c.Preview
}

// GetBackend returns the backend value or the default.
func (c *TrackingConfig) GetBackend() string {
	if c.Backend == nil || *c.Backend == "" {
		return "synthetic"
	}
	return *c.Backend
}

// GetModelPath returns the model_path value or empty.
func (c *TrackingConfig) GetModelPath() string {
	if c.ModelPath == nil {
		return ""
	}
	return *c.ModelPath
}

// GetRemoteURL returns the remote_url value or empty.
func (c *TrackingConfig) GetRemoteURL() string {
	if c.RemoteURL == nil {
		return ""
	}
	return *c.RemoteURL
}

// GetLandmarks returns the landmarks selection name or the default.
func (c *TrackingConfig) GetLandmarks() string {
	if c.Landmarks == nil || *c.Landmarks == "" {
		return "standard"
	}
	return *c.Landmarks
}

// GetMode returns the output mode or the default.
func (c *TrackingConfig) GetMode() string {
	if c.Mode == nil || *c.Mode == "" {
		return "per-frame"
	}
	return *c.Mode
}

// GetBlockSize returns the block_size value, or 0 meaning one second
// of frames at the session rate.
func (c *TrackingConfig) GetBlockSize() int {
	if c.BlockSize == nil {
		return 0
	}
	return *c.BlockSize
}

// GetDistanceFilter returns the distance_filter value or the default.
func (c *TrackingConfig) GetDistanceFilter() bool {
	if c.DistanceFilter == nil {
		return false
	}
	return *c.DistanceFilter
}

// GetFilterThreshold returns the filter_threshold value or the default.
func (c *TrackingConfig) GetFilterThreshold() float64 {
	if c.FilterThreshold == nil {
		return 0.01
	}
	return *c.FilterThreshold
}
