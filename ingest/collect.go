// Package ingest uploads classified recordings to an ingestion service, as
// labelled data for training future models.
package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IngestionBaseURL is the default URL for uploading data.
var IngestionBaseURL = "https://ingestion.edgeimpulse.com"

// Sensor is a sensor for which values must be sent.
type Sensor struct {
	Name  string `json:"name"`
	Units string `json:"units"`
}

// CollectPayload is data to upload for processing.
type CollectPayload struct {
	DeviceName string      `json:"device_name,omitempty"` // Optional.
	DeviceType string      `json:"device_type"`
	IntervalMS float64     `json:"interval_ms"`
	Sensors    []Sensor    `json:"sensors"` // All sensors in this payload.
	Values     [][]float64 `json:"values"`  // Values for each sensor. Each slice in Values must correspond to Sensors.
}

// AddData adds one set of measurements. One value for each sensor.
func (p *CollectPayload) AddData(data []float64) error {
	if len(p.Sensors) != len(data) {
		return fmt.Errorf("invalid data, got %d values, expect value for each of %d sensors", len(data), len(p.Sensors))
	}
	p.Values = append(p.Values, data)
	return nil
}

type protected struct {
	Version   string `json:"ver"`
	Algorithm string `json:"alg"`
	IAT       int64  `json:"iat,omitempty"`
}

type collectData struct {
	Protected protected      `json:"protected"`
	Signature string         `json:"signature"`
	Payload   CollectPayload `json:"payload"`
}

// Collector holds account details like keys, and allows uploading payloads.
type Collector struct {
	HTTPClient       *http.Client
	IngestionBaseURL string

	hmacKey []byte
	apiKey  string
}

// NewCollector makes a new Collector. HmacKey is hex encoded.
// BaseURL may be empty for IngestionBaseURL.
func NewCollector(apiKey, hmacKey, baseURL string) (*Collector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing api key")
	}
	hmacKeyBuf, err := hex.DecodeString(hmacKey)
	if err != nil {
		return nil, fmt.Errorf("parsing hmac key: %v", err)
	}
	if baseURL == "" {
		baseURL = IngestionBaseURL
	}
	c := &Collector{
		HTTPClient:       &http.Client{Timeout: 60 * time.Second},
		IngestionBaseURL: strings.TrimSuffix(baseURL, "/"),
		hmacKey:          hmacKeyBuf,
		apiKey:           apiKey,
	}
	return c, nil
}

// UploadOpts holds payload upload options.
type UploadOpts struct {
	Label              string
	DisallowDuplicates bool
}

// sign marshals the payload with a signature over the data with a zero
// signature in its place.
func (c *Collector) sign(payload CollectPayload, now time.Time) ([]byte, error) {
	data := collectData{
		Protected: protected{
			Version:   "v1",
			Algorithm: "HS256",
			IAT:       now.Unix(),
		},
		Signature: fmt.Sprintf("%x", make([]byte, 32)),
		Payload:   payload,
	}
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data to JSON: %v", err)
	}

	h := hmac.New(sha256.New, c.hmacKey)
	h.Write(buf)
	actualSig := fmt.Sprintf("%x", h.Sum(nil))

	i := bytes.Index(buf, []byte(data.Signature))
	if i < 0 {
		return nil, fmt.Errorf("internal error: could not find zero signature")
	}
	copy(buf[i:], []byte(actualSig))
	return buf, nil
}

// splitCategory deterministically assigns a payload to "training" or
// "testing", based on the hash of the payload.
func splitCategory(payload CollectPayload) (string, error) {
	pbuf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %v", err)
	}
	h := fmt.Sprintf("%x", md5.Sum(pbuf))
	for _, b := range h {
		switch {
		case b == 'f':
			continue
		case b >= '0' && b <= '9' || b == 'a' || b == 'b':
			return "training", nil
		case b == 'c' || b == 'd' || b == 'e':
			return "testing", nil
		}
		break
	}
	return "", fmt.Errorf("internal error: cannot determine category for split")
}

// Upload sends the payload data for ingestion, under category "training",
// "testing" or "split" (decided by payload hash).
// Upload returns the name of the sample as stored by the ingestion service.
// For HTTP-related errors, the (wrapped) underlying errors from net/http or an HTTPError can be returned.
func (c *Collector) Upload(ctx context.Context, filename string, category string, payload CollectPayload, opts *UploadOpts) (string, error) {
	switch category {
	case "split", "training", "testing":
	default:
		return "", fmt.Errorf("invalid category %q, need one of: split, training, testing", category)
	}

	buf, err := c.sign(payload, time.Now())
	if err != nil {
		return "", err
	}
	if category == "split" {
		category, err = splitCategory(payload)
		if err != nil {
			return "", err
		}
	}

	url := fmt.Sprintf("%s/api/%s/data", c.IngestionBaseURL, category)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("new HTTP request: %v", err)
	}
	req.Header.Add("x-api-key", c.apiKey)
	req.Header.Add("x-file-name", filename)
	req.Header.Add("Content-Type", "application/json")
	if opts != nil && opts.Label != "" {
		req.Header.Add("x-label", opts.Label)
	}
	if opts != nil && opts.DisallowDuplicates {
		req.Header.Add("x-disallow-duplicates", "1")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Attempt to read a response message to use in error message, otherwise use http status message.
		msg := resp.Status
		buf, err := io.ReadAll(resp.Body)
		if err == nil && len(buf) > 0 {
			msg = string(buf)
		}
		return "", HTTPError{resp.StatusCode, msg}
	}
	respBuf, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response message: %w", err)
	}
	return string(respBuf), nil
}

// HTTPError represents an HTTP error code and message.
type HTTPError struct {
	Code   int    // HTTP status code, eg 401 or 500.
	Status string // Status message, either from body or the HTTP response status line.
}

// Error returns a human-readable description of the HTTP error.
func (e HTTPError) Error() string {
	return fmt.Sprintf("http response error, code %d: %s", e.Code, e.Status)
}

// Ensure HTTPError implements the error interface.
var _ error = HTTPError{}
