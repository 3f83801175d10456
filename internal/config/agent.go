package config

import (
	"fmt"
	"net/url"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentProviderName = "CREDITREAD_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "CREDITREAD_AGENT_BASE_URL"
	EnvAgentToken        = "CREDITREAD_AGENT_TOKEN"
	EnvAgentDeployment   = "CREDITREAD_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "CREDITREAD_AGENT_API_VERSION"
	EnvAgentAuthType     = "CREDITREAD_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "CREDITREAD_AGENT_MODEL_NAME"
)

// agentOptions maps env variables to provider option keys. Tokens only
// ever arrive this way, never from config files.
var agentOptions = []struct{ env, key string }{
	{EnvAgentToken, "token"},
	{EnvAgentDeployment, "deployment"},
	{EnvAgentAPIVersion, "api_version"},
	{EnvAgentAuthType, "auth_type"},
}

// FinalizeAgent layers the file config over go-agents defaults, applies
// env overrides, and checks the result names a provider.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	merged := gaconfig.DefaultAgentConfig()
	merged.Merge(c)
	*c = merged

	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}

	if v := os.Getenv(EnvAgentProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvAgentModelName); v != "" {
		c.Model.Name = v
	}
	for _, o := range agentOptions {
		if v := os.Getenv(o.env); v != "" {
			c.Provider.Options[o.key] = v
		}
	}

	switch {
	case c.Name == "":
		return fmt.Errorf("name required")
	case c.Provider.Name == "":
		return fmt.Errorf("provider name required")
	}
	if c.Provider.BaseURL != "" {
		if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid provider base_url: %q", c.Provider.BaseURL)
		}
	}
	return nil
}
