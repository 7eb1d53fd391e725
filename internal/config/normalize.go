package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizeSegmenting()
	c.normalizeWorkflow()
	c.normalizeEvents()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("VODPIPE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimSpace(c.Backend.BaseURL)
	if c.Backend.BaseURL == "" {
		if value, ok := os.LookupEnv("VODPIPE_API_BASE"); ok {
			c.Backend.BaseURL = strings.TrimSpace(value)
		}
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")

	c.Backend.MediaServerURL = strings.TrimRight(strings.TrimSpace(c.Backend.MediaServerURL), "/")
	if c.Backend.MediaServerURL == "" && c.Backend.BaseURL != "" {
		c.Backend.MediaServerURL = c.Backend.BaseURL + "/api"
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultBackendTimeout
	}
	c.Backend.UserID = strings.TrimSpace(c.Backend.UserID)
	if c.Backend.UserID == "" {
		c.Backend.UserID = defaultUserID
	}
	c.Backend.ShadowMode = strings.TrimSpace(c.Backend.ShadowMode)
	if value, ok := os.LookupEnv("VODPIPE_SCORING_SHADOW"); ok && strings.TrimSpace(value) != "" {
		c.Backend.ShadowMode = strings.TrimSpace(value)
	}
	if c.Backend.ShadowMode == "" {
		c.Backend.ShadowMode = defaultShadowMode
	}
}

func (c *Config) normalizeSegmenting() {
	c.Segmenting.DefaultSegmentIndex = strings.TrimSpace(c.Segmenting.DefaultSegmentIndex)
	if c.Segmenting.DefaultSegmentIndex == "" {
		c.Segmenting.DefaultSegmentIndex = defaultSegmentIndex
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PolishConcurrency <= 0 {
		c.Workflow.PolishConcurrency = defaultPolishConcurrency
	}
	if c.Workflow.MaxClipsPerVOD < 0 {
		c.Workflow.MaxClipsPerVOD = 0
	}
}

func (c *Config) normalizeEvents() {
	c.Events.URL = strings.TrimRight(strings.TrimSpace(c.Events.URL), "/")
	if c.Events.URL == "" && c.Backend.BaseURL != "" {
		if parsed, err := url.Parse(c.Backend.BaseURL); err == nil && parsed.Host != "" {
			c.Events.URL = parsed.Scheme + "://" + parsed.Host
		}
	}
	if c.Events.ReconnectDelay <= 0 {
		c.Events.ReconnectDelay = defaultEventsReconnectDelay
	}
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = defaultEventsBufferSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			key := strings.ToLower(strings.TrimSpace(stage))
			if key == "" {
				continue
			}
			overrides[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.StageOverrides = overrides
	}
}
