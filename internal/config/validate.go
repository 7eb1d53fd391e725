package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateSegmenting(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBackend() error {
	if c.Backend.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("backend.base_url is required. Set VODPIPE_API_BASE env var or edit %s (create with 'vodpipe config init')", defaultPath)
	}
	if err := validateHTTPURL("backend.base_url", c.Backend.BaseURL); err != nil {
		return err
	}
	if c.Backend.MediaServerURL == "" {
		return nil
	}
	return validateHTTPURL("backend.media_server_url", c.Backend.MediaServerURL)
}

func (c *Config) validateSegmenting() error {
	if err := ensurePositiveMap(map[string]int{
		"segmenting.segment_duration": c.Segmenting.SegmentDuration,
		"segmenting.fps":              c.Segmenting.FPS,
	}); err != nil {
		return err
	}
	if c.Segmenting.Overlap < 0 {
		return errors.New("segmenting.overlap must be >= 0")
	}
	if c.Segmenting.Overlap >= c.Segmenting.SegmentDuration {
		return errors.New("segmenting.overlap must be less than segmenting.segment_duration")
	}
	for _, r := range c.Segmenting.DefaultSegmentIndex {
		if r < '0' || r > '9' {
			return errors.New("segmenting.default_segment_index must be numeric")
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"backend.request_timeout":       c.Backend.RequestTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Events.URL) == "" {
		return errors.New("events.url must be set when events.enabled is true")
	}
	if _, err := c.EventsSocketURL(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	for stage, level := range c.Logging.StageOverrides {
		switch level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("logging.stage_overrides.%s: unknown level %q", stage, level)
		}
	}
	return nil
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
