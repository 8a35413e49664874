// Package graphstore is the signed, paginated client for the GraphQL-style
// graph store (spec §4.2). Requests are signed with a service JWT the way
// the teacher signs its OTEL exporter calls. Documents are hand-written
// strings that gqlparser parses once at package initialisation.
package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/errkind"
)

// Signer mints a short-lived bearer token for one request, the way the
// store's access policy expects: a service-identity JWT, not a static key.
type Signer struct {
	key      jwk.Key
	issuer   string
	audience string
	ttl      time.Duration
}

// NewSigner builds a Signer from a raw HMAC signing key; tokens are signed
// with HS256. The key
// material is supplied by the deployment's secret store, never hard-coded.
func NewSigner(rawKey []byte, issuer, audience string) (*Signer, error) {
	key, err := jwk.Import(rawKey)
	if err != nil {
		return nil, fmt.Errorf("graphstore: import signing key: %w", err)
	}
	return &Signer{key: key, issuer: issuer, audience: audience, ttl: 2 * time.Minute}, nil
}

func (s *Signer) token(now time.Time) ([]byte, error) {
	tok, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim("requester", "discovery-process").
		Build()
	if err != nil {
		return nil, err
	}
	return jwt.Sign(tok, jwt.WithKey(jwa.HS256(), s.key))
}

// Client is the graph store's HTTP transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
}

func NewClient(baseURL string, signer *Signer, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, signer: signer}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
	Type    string `json:"errorType,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

// execute issues one signed GraphQL request and decodes its data payload
// into out. A 413 response maps to errkind.PayloadTooLarge, a 5xx response
// to an opaque error, a transport failure to errkind.ConnectionClosedPrematurely
// (classifyTransportError), and reported GraphQL errors go through
// classifyGraphQLErrors, the recoverable-error probe of spec §4.2.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("graphstore: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.signer != nil {
		tok, err := c.signer.token(time.Now())
		if err != nil {
			return fmt.Errorf("graphstore: sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+string(tok))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("graphstore: read response: %w", err)
	}
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return errkind.New(errkind.PayloadTooLarge, "graph store rejected payload as too large")
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("graphstore: server error %d: %s", resp.StatusCode, raw)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return fmt.Errorf("graphstore: decode response: %w", err)
	}
	if err := classifyGraphQLErrors(gqlResp.Errors); err != nil {
		return err
	}
	if out != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			return fmt.Errorf("graphstore: decode data: %w", err)
		}
	}
	return nil
}

// classifyGraphQLErrors implements the recoverable-error probe of spec §4.2:
// "resolver code size" and "payload too large" bail immediately; a
// "connection closed prematurely" signal is surfaced for one retry by the
// caller (executeWithRetry and the ReadAll* loops), everything else is an
// opaque failure.
func classifyGraphQLErrors(errs []graphqlError) error {
	for _, e := range errs {
		switch e.Type {
		case "PayloadTooLargeError":
			return errkind.New(errkind.PayloadTooLarge, e.Message)
		case "ResolverCodeSizeError":
			return errkind.New(errkind.ResolverCodeSize, e.Message)
		case "ConnectionClosedPrematurelyError":
			return errkind.New(errkind.ConnectionClosedPrematurely, e.Message)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("graphstore: %s", errs[0].Message)
	}
	return nil
}

func classifyTransportError(err error) error {
	return errkind.Wrap(errkind.ConnectionClosedPrematurely, err, "connection closed prematurely")
}
