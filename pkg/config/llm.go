package config

import (
	"fmt"
	"os"
	"strings"
)

// Credential kinds accepted by AzureOpenAIConfig.Credential.
const (
	CredentialCLI     = "cli"
	CredentialDefault = "default"
	CredentialEnv     = "env"
)

// DefaultAPIVersion is used when AZURE_OPENAI_API_VERSION is not set.
const DefaultAPIVersion = "2024-08-01-preview"

// DefaultMaxContextTokens caps the prompt window built from thread history.
// Sized for the 128k-context gpt-4o family with headroom for the response.
const DefaultMaxContextTokens = 100000

// AzureOpenAIConfig configures the Azure OpenAI chat completions provider.
type AzureOpenAIConfig struct {
	// Endpoint is the Azure OpenAI resource endpoint,
	// e.g. "https://my-resource.openai.azure.com". Supports ${VAR} expansion.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Deployment is the model deployment name (e.g. "gpt-4o-mini").
	Deployment string `yaml:"deployment,omitempty"`

	// APIVersion selects the REST API version.
	APIVersion string `yaml:"api_version,omitempty"`

	// APIKey authenticates with the api-key header. When empty, Azure AD
	// bearer tokens are used via Credential.
	APIKey string `yaml:"api_key,omitempty"`

	// Credential selects the Azure AD credential when APIKey is empty.
	// Values: "cli" (default, az login), "default" (DefaultAzureCredential
	// chain), "env" (service principal from AZURE_TENANT_ID/AZURE_CLIENT_ID/
	// AZURE_CLIENT_SECRET).
	Credential string `yaml:"credential,omitempty"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// MaxContextTokens caps the prompt window built from thread history;
	// the oldest messages are trimmed to fit. Negative disables trimming.
	MaxContextTokens int `yaml:"max_context_tokens,omitempty"`

	// Timeout in seconds for a single request.
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries for retryable HTTP failures.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// RetryDelay is the base backoff delay in seconds.
	RetryDelay int `yaml:"retry_delay,omitempty"`
}

// SetDefaults applies defaults, reading the standard environment variables
// for anything left unset.
func (c *AzureOpenAIConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}
	c.Endpoint = strings.TrimSuffix(c.Endpoint, "/")
	if c.Deployment == "" {
		c.Deployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	}
	if c.Deployment == "" {
		c.Deployment = "gpt-4o-mini"
	}
	if c.APIVersion == "" {
		c.APIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if c.Credential == "" {
		c.Credential = CredentialCLI
	}
	if c.Temperature == nil {
		t := 0.7
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = DefaultMaxContextTokens
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
}

// Validate checks the config for errors.
func (c *AzureOpenAIConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required (set AZURE_OPENAI_ENDPOINT or llm.endpoint)")
	}
	if !strings.HasPrefix(c.Endpoint, "https://") && !strings.HasPrefix(c.Endpoint, "http://") {
		return fmt.Errorf("endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	if c.Deployment == "" {
		return fmt.Errorf("deployment is required (set AZURE_OPENAI_DEPLOYMENT or llm.deployment)")
	}
	switch c.Credential {
	case CredentialCLI, CredentialDefault, CredentialEnv:
	default:
		return fmt.Errorf("invalid credential %q (valid: cli, default, env)", c.Credential)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", *c.Temperature)
	}
	return nil
}
