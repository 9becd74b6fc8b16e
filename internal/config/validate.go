package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateClient() error {
	parsed, err := url.Parse(c.Client.BackendURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("client.backend_url must be an absolute http(s) URL, got %q", c.Client.BackendURL)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !slices.Contains(LLMProviders, c.LLM.Provider) {
		return fmt.Errorf("llm.provider must be one of %s, got %q", strings.Join(LLMProviders, ", "), c.LLM.Provider)
	}
	return nil
}

func (c *Config) validateImages() error {
	if !slices.Contains(ImageProviders, c.Images.Provider) {
		return fmt.Errorf("images.provider must be one of %s, got %q", strings.Join(ImageProviders, ", "), c.Images.Provider)
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be a full URL such as https://ntfy.sh/my-topic, got %q", topic)
		}
	}
	if c.Images.MaxWorkers > 10 {
		return errors.New("images.max_workers must not exceed 10")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.provider_poll_interval": c.Workflow.ProviderPollInterval,
		"workflow.progress_tick_seconds":  c.Workflow.ProgressTickSeconds,
		"client.request_timeout":          c.Client.RequestTimeout,
		"client.health_timeout":           c.Client.HealthTimeout,
		"search.cache_ttl_hours":          c.Search.CacheTTLHours,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
