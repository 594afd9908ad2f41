// Package registry talks to the federation's membership registry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/roster-system/models"
)

var (
	ErrNotFound      = errors.New("registry: profile not found")
	ErrUnavailable   = errors.New("registry: unavailable")
	ErrBadData       = errors.New("registry: malformed response")
	ErrNotConfigured = errors.New("registry: url, token or secret not configured")
)

// Client is the read-only view of the registry used by rosters and the sync job.
type Client interface {
	// FetchAllNames returns the full name list. A nil or empty result means
	// there is nothing to do.
	FetchAllNames(ctx context.Context) ([]models.Identity, error)
	// FetchProfile returns ErrNotFound when the registry has no profile for n.
	FetchProfile(ctx context.Context, federationNumber int) (*models.ProfileDetail, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	secret     string
	httpClient *http.Client
}

// NewHTTPClient creates a registry client; every request is bounded by timeout.
func NewHTTPClient(baseURL, token, secret string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) configured() bool {
	return c.baseURL != "" && c.token != "" && c.secret != ""
}

func (c *HTTPClient) get(ctx context.Context, path string, result any) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	q := url.Values{}
	q.Set("token", c.token)
	q.Set("secret", c.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request %s failed: %v", ErrUnavailable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("registry: HTTP %d: %s", resp.StatusCode, string(body))
	}

	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %v", ErrBadData, err)
	}
	return nil
}

func (c *HTTPClient) FetchAllNames(ctx context.Context) ([]models.Identity, error) {
	var dtos []nameDTO
	if err := c.get(ctx, "/profile/sparte/ultimate", &dtos); err != nil {
		return nil, err
	}
	if len(dtos) == 0 {
		return nil, nil
	}

	identities := make([]models.Identity, 0, len(dtos))
	for _, d := range dtos {
		identities = append(identities, d.toModel())
	}
	return identities, nil
}

func (c *HTTPClient) FetchProfile(ctx context.Context, federationNumber int) (*models.ProfileDetail, error) {
	var dto *profileDTO
	if err := c.get(ctx, "/profil/"+strconv.Itoa(federationNumber), &dto); err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, ErrNotFound
	}
	profile, err := dto.toModel()
	if err != nil {
		return nil, err
	}
	if profile.FederationNumber == 0 {
		profile.FederationNumber = federationNumber
	}
	return profile, nil
}
