package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/kainotomo/invoice-bridge/internal/models"
)

// Client is an HTTP client for the remote extraction provider.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient creates a provider client. The timeout is generous because
// extraction of large scans is slow on the provider side.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Result is a successful provider extraction.
type Result struct {
	Cost float64
	Doc  *models.ExtractedDocument
	// Raw is the full provider response, persisted on the run log so a
	// failed transformation can be retried without paying for extraction
	// again.
	Raw []byte
}

// envelope is the provider's response wrapper. Message is either an object
// (the normal case) or a bare string (some error variants).
type envelope struct {
	Message json.RawMessage `json:"message"`
}

type messageBody struct {
	Success      bool    `json:"success"`
	Cost         float64 `json:"cost"`
	ExtractedDoc string  `json:"extracted_doc"`
	Message      string  `json:"message"`
}

// ExtractInvoice posts the source file as multipart form data and decodes
// the extraction result. Non-200 responses are hard failures carrying the
// raw body for diagnostics.
func (c *Client) ExtractInvoice(ctx context.Context, filename string, file io.Reader) (*Result, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, inputErr("failed to build multipart request", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, inputErr("failed to read source file", err)
	}
	if err := writer.WriteField("is_private", "1"); err != nil {
		return nil, inputErr("failed to build multipart request", err)
	}
	if err := writer.Close(); err != nil {
		return nil, inputErr("failed to build multipart request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/method/extract_invoice", &buf)
	if err != nil {
		return nil, providerErr("failed to create request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providerErr("extraction request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerErr("failed to read provider response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providerErr(fmt.Sprintf("HTTP %d - %s", resp.StatusCode, string(raw)), nil)
	}

	result, err := ParseProviderResponse(raw)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ParseProviderResponse decodes a stored or freshly received provider
// response body into a Result. Split out so retries can re-run the
// transformation from the persisted response.
func ParseProviderResponse(raw []byte) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, providerErr("malformed provider JSON", err)
	}
	if len(env.Message) == 0 {
		return nil, validationErr("provider response has no message field")
	}

	// The error variant {"message": "..."} carries a bare string.
	var plain string
	if err := json.Unmarshal(env.Message, &plain); err == nil {
		return nil, providerErr("provider error: "+plain, nil)
	}

	var body messageBody
	if err := json.Unmarshal(env.Message, &body); err != nil {
		return nil, providerErr("malformed provider message", err)
	}
	if !body.Success {
		if body.Message != "" {
			return nil, providerErr("provider error: "+body.Message, nil)
		}
		return nil, validationErr("provider reported failure without detail")
	}
	if body.ExtractedDoc == "" {
		return nil, validationErr("provider response missing extracted_doc")
	}

	doc, err := models.ParseExtractedDocument([]byte(body.ExtractedDoc))
	if err != nil {
		return nil, providerErr("malformed extracted_doc payload", err)
	}

	return &Result{
		Cost: body.Cost,
		Doc:  doc,
		Raw:  raw,
	}, nil
}

// Credits fetches the remaining extraction credit balance.
func (c *Client) Credits(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/method/get_user_credits", nil)
	if err != nil {
		return 0, providerErr("failed to create request", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, providerErr("credits request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return 0, providerErr(fmt.Sprintf("HTTP %d - %s", resp.StatusCode, string(raw)), nil)
	}

	var payload struct {
		Message struct {
			Success bool    `json:"success"`
			Credits float64 `json:"credits"`
			Message string  `json:"message"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, providerErr("malformed credits response", err)
	}
	if !payload.Message.Success {
		return 0, providerErr("credits error: "+payload.Message.Message, nil)
	}
	return payload.Message.Credits, nil
}
