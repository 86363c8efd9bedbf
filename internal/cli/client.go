package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"empires/internal/game"
)

// Client is the thin HTTP client the CLI uses against the API service.
type Client struct {
	BaseURL  string
	PlayerID string
	HTTP     *http.Client
}

func NewClient(baseURL, playerID string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		PlayerID: playerID,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) CreateEmpire(ctx context.Context, name string) (*game.Empire, error) {
	var out game.Empire
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/empire", map[string]any{"name": name}, &out)
	return &out, err
}

func (c *Client) Empire(ctx context.Context) (*game.Empire, error) {
	var out game.Empire
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/empire", nil, &out)
	return &out, err
}

func (c *Client) AddCompany(ctx context.Context, companyID, name, industry string, level int32, revenueMicros, valueMicros int64) (*game.Empire, error) {
	var out game.Empire
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/empire/companies", map[string]any{
		"company_id":     companyID,
		"name":           name,
		"industry":       industry,
		"level":          level,
		"revenue_micros": revenueMicros,
		"value_micros":   valueMicros,
	}, &out)
	return &out, err
}

func (c *Client) RemoveCompany(ctx context.Context, companyID string) (*game.Empire, error) {
	var out game.Empire
	err := c.jsonRequest(ctx, http.MethodDelete, "/v1/empire/companies/"+url.PathEscape(companyID), nil, &out)
	return &out, err
}

func (c *Client) SetHeadquarters(ctx context.Context, companyID string) (*game.Empire, error) {
	var out game.Empire
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/empire/companies/"+url.PathEscape(companyID)+"/headquarters", nil, &out)
	return &out, err
}

func (c *Client) AddXP(ctx context.Context, amount int64) (game.XPResult, error) {
	var out game.XPResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/empire/xp", map[string]any{"amount": amount}, &out)
	return out, err
}

func (c *Client) CreateFlow(ctx context.Context, sourceID, destID, resource, frequency string, qtyUnits, priceMicros int64) (*game.Flow, error) {
	var out game.Flow
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/flows", map[string]any{
		"source_company_id":     sourceID,
		"dest_company_id":       destID,
		"resource":              resource,
		"frequency":             frequency,
		"quantity_units":        qtyUnits,
		"price_per_unit_micros": priceMicros,
	}, &out)
	return &out, err
}

func (c *Client) ListFlows(ctx context.Context) ([]*game.Flow, error) {
	var out struct {
		Flows []*game.Flow `json:"flows"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/flows", nil, &out)
	return out.Flows, err
}

func (c *Client) FlowAction(ctx context.Context, flowID, action string) (*game.Flow, error) {
	var out game.Flow
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/flows/"+url.PathEscape(flowID)+"/"+action, nil, &out)
	return &out, err
}

func (c *Client) FlowSavings(ctx context.Context, flowID string, marketPriceMicros int64) (game.SavingsView, error) {
	var out game.SavingsView
	path := fmt.Sprintf("/v1/flows/%s/savings?market_price_micros=%d", url.PathEscape(flowID), marketPriceMicros)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Catalog(ctx context.Context) ([]game.SynergyDef, error) {
	var out struct {
		Synergies []game.SynergyDef `json:"synergies"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", nil, &out)
	return out.Synergies, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.PlayerID != "" {
		req.Header.Set("X-Player-ID", c.PlayerID)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
