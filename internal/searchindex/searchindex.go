// Package searchindex is the client for the crawl's search index: the
// first half of the dual-store write (spec §4.10). Signing mirrors
// internal/graphstore's JWT idiom since both sit behind the same access
// policy.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/delta"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/errkind"
	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

type Signer struct {
	key      jwk.Key
	issuer   string
	audience string
	ttl      time.Duration
}

func NewSigner(rawKey []byte, issuer, audience string) (*Signer, error) {
	key, err := jwk.Import(rawKey)
	if err != nil {
		return nil, fmt.Errorf("searchindex: import signing key: %w", err)
	}
	return &Signer{key: key, issuer: issuer, audience: audience, ttl: 2 * time.Minute}, nil
}

func (s *Signer) token(now time.Time) ([]byte, error) {
	tok, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Build()
	if err != nil {
		return nil, err
	}
	return jwt.Sign(tok, jwt.WithKey(jwa.HS256(), s.key))
}

// Client is the search index's HTTP transport.
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

// bulkResponse mirrors the index's bulk-write acknowledgement shape: an
// item-level outcome per document, since one oversized or malformed
// document must not sink an entire batch.
type bulkResponse struct {
	Items []bulkItem `json:"items"`
}

type bulkItem struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

func (c *Client) Index(ctx context.Context, batch []resource.Projected) ([]string, error) {
	docs := make([]map[string]any, len(batch))
	for i, p := range batch {
		docs[i] = map[string]any{"id": p.ID, "type": p.Type, "title": p.Title, "accountId": p.AccountID, "region": p.Region}
	}
	return c.bulk(ctx, "index", docs)
}

func (c *Client) Update(ctx context.Context, batch []delta.Update) ([]string, error) {
	docs := make([]map[string]any, len(batch))
	for i, u := range batch {
		doc := map[string]any{"id": u.ID}
		for k, v := range u.Changed {
			doc[k] = v
		}
		docs[i] = doc
	}
	return c.bulk(ctx, "update", docs)
}

func (c *Client) Delete(ctx context.Context, ids []string) ([]string, error) {
	docs := make([]map[string]any, len(ids))
	for i, id := range ids {
		docs[i] = map[string]any{"id": id}
	}
	return c.bulk(ctx, "delete", docs)
}

// bulk posts one operation batch and returns the ids the index rejected —
// callers (internal/persist) use this to restrict the matching graph-store
// mutation to the accepted subset (the dual-store policy of spec §4.10).
func (c *Client) bulk(ctx context.Context, op string, docs []map[string]any) ([]string, error) {
	body, err := json.Marshal(map[string]any{"operation": op, "documents": docs})
	if err != nil {
		return nil, fmt.Errorf("searchindex: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_bulk", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("searchindex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		tok, err := c.signer.token(time.Now())
		if err != nil {
			return nil, fmt.Errorf("searchindex: sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+string(tok))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.ConnectionClosedPrematurely, err, "search index request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("searchindex: server error %d", resp.StatusCode)
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return nil, fmt.Errorf("searchindex: decode response: %w", err)
	}

	// A per-document rejection is not fatal to the batch: it is reported to
	// the caller as an unprocessed id and excluded from the graph-store
	// mutation the Persister issues next (spec §4.10 dual-store policy).
	// Only a transport or server-level failure aborts the whole batch.
	var unprocessed []string
	for _, item := range bulkResp.Items {
		if item.Error != "" {
			unprocessed = append(unprocessed, item.ID)
		}
	}
	return unprocessed, nil
}
