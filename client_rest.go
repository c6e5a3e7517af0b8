package execsql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RESTClient calls the procedure through a PostgREST /rpc endpoint.
type RESTClient struct {
	endpoint   string
	profile    string
	key        string
	param      string
	httpClient *http.Client
}

// NewRESTClient creates a RESTClient. A nil httpClient uses a client
// without a timeout; cancel the context to bound the request.
func NewRESTClient(cfg Config, httpClient *http.Client) (*RESTClient, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", ErrConfig, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: url must start with http:// or https://, got %q", ErrConfig, cfg.URL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// PostgREST selects the schema through a profile header, not the path.
	profile, name := splitProcedure(cfg.Procedure)
	return &RESTClient{
		endpoint:   base.JoinPath("rest", "v1", "rpc", name).String(),
		profile:    profile,
		key:        cfg.Key,
		param:      cfg.Param,
		httpClient: httpClient,
	}, nil
}

// Endpoint returns the URL requests are posted to.
func (c *RESTClient) Endpoint() string {
	return c.endpoint
}

// Profile returns the schema sent in the profile headers, or "" for the
// default schema.
func (c *RESTClient) Profile() string {
	return c.profile
}

// splitProcedure splits "schema.name" into its parts. An unqualified name has
// an empty schema.
func splitProcedure(procedure string) (schema, name string) {
	if schema, name, ok := strings.Cut(procedure, "."); ok {
		return schema, name
	}
	return "", procedure
}

// ExecSQL posts {"<param>": sql} to the procedure endpoint.
func (c *RESTClient) ExecSQL(ctx context.Context, sql string) (Result, error) {
	body, err := json.Marshal(map[string]string{c.param: sql})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	if c.profile != "" {
		req.Header.Set("Content-Profile", c.profile)
		req.Header.Set("Accept-Profile", c.profile)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeRemoteError(resp.StatusCode, respBody)
	}

	respBody = bytes.TrimSpace(respBody)
	if len(respBody) == 0 {
		return nullResult, nil
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("failed to parse response: invalid JSON: %q", respBody)
	}
	return Result(respBody), nil
}

// decodeRemoteError turns a PostgREST error body into a *RemoteError.
func decodeRemoteError(status int, body []byte) *RemoteError {
	rerr := &RemoteError{}
	if err := json.Unmarshal(body, rerr); err != nil || rerr.Message == "" {
		rerr = &RemoteError{Message: strings.TrimSpace(string(body))}
		if rerr.Message == "" {
			rerr.Message = http.StatusText(status)
		}
	}
	rerr.Status = status
	return rerr
}
