package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRenderer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.UploadsDir, err = expandPath(c.Paths.UploadsDir); err != nil {
		return fmt.Errorf("paths.uploads_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if strings.TrimSpace(c.Paths.AdminSecret) == "" {
		c.Paths.AdminSecret = defaultAdminSecret
	}
	return nil
}

func (c *Config) normalizeRenderer() error {
	c.Renderer.PythonBinary = strings.TrimSpace(c.Renderer.PythonBinary)
	if c.Renderer.PythonBinary == "" {
		c.Renderer.PythonBinary = defaultPythonBinary
	}
	c.Renderer.ScriptPath = strings.TrimSpace(c.Renderer.ScriptPath)
	if c.Renderer.ScriptPath == "" {
		c.Renderer.ScriptPath = defaultRendererScript
	}
	var err error
	if c.Renderer.ScriptPath, err = expandPath(c.Renderer.ScriptPath); err != nil {
		return fmt.Errorf("renderer.script_path: %w", err)
	}
	if c.Renderer.TimeoutSeconds <= 0 {
		c.Renderer.TimeoutSeconds = defaultRendererTimeoutSeconds
	}
	if c.Renderer.Workers <= 0 {
		c.Renderer.Workers = defaultRendererWorkers
	}
	if c.Renderer.QueueSize <= 0 {
		c.Renderer.QueueSize = defaultRendererQueueSize
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
