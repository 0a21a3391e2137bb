package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"syntra-pos/internal/database/models"
	posHandler "syntra-pos/internal/services/pos/handler"
)

var ErrUnavailable = errors.New("pos gateway unavailable")

// POSClient talks to the gateway's /api/v1 HTTP API. It satisfies
// cart.Submitter, so a terminal can check out over the network.
type POSClient struct {
	baseURL string
	http    *http.Client
}

func NewPOSClient(baseURL string, timeout time.Duration) *POSClient {
	return &POSClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do sends body as JSON and decodes the envelope. Responses below 500 are
// returned as-is so callers can read a rejection; 5xx and transport errors
// are errors.
func (c *POSClient) do(ctx context.Context, method, path string, body interface{}) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &out, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, out.Message)
	}
	return &out, nil
}

func (c *POSClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	resp, err := c.do(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.New(resp.Message)
	}

	var products []models.Product
	if err := json.Unmarshal(resp.Data, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

func (c *POSClient) GetSettings(ctx context.Context) (models.Settings, error) {
	resp, err := c.do(ctx, http.MethodGet, "/settings", nil)
	if err != nil {
		return models.Settings{}, err
	}
	if !resp.Success {
		return models.Settings{}, errors.New(resp.Message)
	}

	var settings models.Settings
	if err := json.Unmarshal(resp.Data, &settings); err != nil {
		return models.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// ProcessSale mirrors POSHandler.ProcessSale: a rejected sale comes back as
// Success=false with no error.
func (c *POSClient) ProcessSale(ctx context.Context, req *posHandler.ProcessSaleRequest) (*posHandler.ProcessSaleResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/sales", req)
	if err != nil {
		msg := "Transaction failed"
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		return &posHandler.ProcessSaleResponse{Success: false, Message: &msg}, err
	}

	if !resp.Success {
		msg := resp.Message
		return &posHandler.ProcessSaleResponse{Success: false, Message: &msg}, nil
	}

	var created struct {
		SaleID string `json:"sale_id"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		return nil, fmt.Errorf("decode sale: %w", err)
	}

	msg := resp.Message
	return &posHandler.ProcessSaleResponse{
		Success: true,
		SaleID:  created.SaleID,
		Message: &msg,
	}, nil
}
