// Package azauth acquires Azure AD bearer tokens for Azure OpenAI.
//
// The provider mirrors the common token-provider pattern: wrap an
// azcore.TokenCredential, request the Cognitive Services scope, cache the
// token and refresh it shortly before expiry.
package azauth

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// CognitiveServicesScope is the OAuth scope for Azure OpenAI.
const CognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

// refreshSkew renews tokens this long before their actual expiry.
const refreshSkew = 2 * time.Minute

// NewCredential builds an azcore.TokenCredential for the given kind:
//
//   - "cli": Azure CLI credential (requires `az login`)
//   - "default": DefaultAzureCredential chain (env, workload identity,
//     managed identity, CLI)
//   - "env": service principal from AZURE_TENANT_ID, AZURE_CLIENT_ID and
//     AZURE_CLIENT_SECRET
func NewCredential(kind string) (azcore.TokenCredential, error) {
	switch kind {
	case "cli":
		cred, err := azidentity.NewAzureCLICredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azure cli credential: %w", err)
		}
		return cred, nil

	case "default":
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("default azure credential: %w", err)
		}
		return cred, nil

	case "env":
		tenantID := os.Getenv("AZURE_TENANT_ID")
		clientID := os.Getenv("AZURE_CLIENT_ID")
		clientSecret := os.Getenv("AZURE_CLIENT_SECRET")
		if tenantID == "" || clientID == "" || clientSecret == "" {
			return nil, fmt.Errorf("env credential requires AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET")
		}
		cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("client secret credential: %w", err)
		}
		return cred, nil

	default:
		return nil, fmt.Errorf("unknown credential kind %q (valid: cli, default, env)", kind)
	}
}

// TokenProvider returns a bearer token for each request.
type TokenProvider func(ctx context.Context) (string, error)

// NewBearerTokenProvider wraps a credential into a caching TokenProvider for
// the given scopes (CognitiveServicesScope when none are given). Safe for
// concurrent use.
func NewBearerTokenProvider(cred azcore.TokenCredential, scopes ...string) TokenProvider {
	if len(scopes) == 0 {
		scopes = []string{CognitiveServicesScope}
	}

	var mu sync.Mutex
	var cached azcore.AccessToken

	return func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		if cached.Token != "" && time.Until(cached.ExpiresOn) > refreshSkew {
			return cached.Token, nil
		}

		token, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: scopes})
		if err != nil {
			return "", fmt.Errorf("get azure token: %w", err)
		}

		cached = token
		return token.Token, nil
	}
}
