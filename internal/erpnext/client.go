// Package erpnext talks to the host document store over its REST resource
// API. The store is the system of record; this service only ever touches
// documents it explicitly creates.
package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Store is the boundary to the host document store.
type Store interface {
	// Exists reports whether a document with the given natural key exists.
	Exists(ctx context.Context, doctype, field, value string) (bool, error)
	// Create inserts a new document and returns its assigned name.
	Create(ctx context.Context, doctype string, doc any) (string, error)
	// Get fetches a document by name into out.
	Get(ctx context.Context, doctype, name string, out any) error
	// AttachFile links an already-stored file URL to a document.
	AttachFile(ctx context.Context, fileURL, doctype, name string) error
}

// Client is the HTTP implementation of Store.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient creates a store client with token authentication.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// Exists queries the resource listing filtered on the natural key.
func (c *Client) Exists(ctx context.Context, doctype, field, value string) (bool, error) {
	filters := fmt.Sprintf(`[["%s","=",%q]]`, field, value)
	path := fmt.Sprintf("/api/resource/%s?filters=%s&limit_page_length=1",
		url.PathEscape(doctype), url.QueryEscape(filters))

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, fmt.Errorf("existence check for %s: %w", doctype, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("existence check for %s: HTTP %d - %s", doctype, resp.StatusCode, string(raw))
	}

	var listing struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return false, fmt.Errorf("decode existence response: %w", err)
	}
	return len(listing.Data) > 0, nil
}

// Create inserts the document and returns the name assigned by the store.
func (c *Client) Create(ctx context.Context, doctype string, doc any) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", doctype, err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/resource/"+url.PathEscape(doctype), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", doctype, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create %s: HTTP %d - %s", doctype, resp.StatusCode, string(raw))
	}

	var created struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return created.Data.Name, nil
}

// Get fetches one document by name.
func (c *Client) Get(ctx context.Context, doctype, name string, out any) error {
	path := fmt.Sprintf("/api/resource/%s/%s", url.PathEscape(doctype), url.PathEscape(name))
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("get %s %s: %w", doctype, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("get %s %s: HTTP %d - %s", doctype, name, resp.StatusCode, string(raw))
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode get response: %w", err)
	}
	return json.Unmarshal(envelope.Data, out)
}

// AttachFile records a File document pointing at the stored invoice so the
// source scan stays reachable from the created Purchase Invoice.
func (c *Client) AttachFile(ctx context.Context, fileURL, doctype, name string) error {
	_, err := c.Create(ctx, "File", map[string]any{
		"file_url":            fileURL,
		"attached_to_doctype": doctype,
		"attached_to_name":    name,
	})
	return err
}
