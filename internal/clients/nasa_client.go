package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"asteroidradar/internal/apperr"
)

const (
	feedPath = "/neo/rest/v1/feed"
	apodPath = "/planetary/apod"

	opFeed = "fetch asteroid feed"
	opAPOD = "fetch picture of day"

	// upper bound on the response body kept in a RemoteError
	maxErrorBody = 512
)

//go:generate mockgen -source=nasa_client.go -destination=mocks/nasa_client_mock.go -package=mocks

type NASAClient interface {
	// FetchAsteroidFeed returns the NEO feed body as text. An empty endDate
	// leaves the window to the API.
	FetchAsteroidFeed(ctx context.Context, startDate, endDate string) (string, error)
	FetchPictureOfDay(ctx context.Context) (*PictureOfDayResponse, error)
}

// PictureOfDayResponse is the subset of the APOD payload that gets cached.
type PictureOfDayResponse struct {
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

type NASAConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type nasaClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNASAClient(config NASAConfig) NASAClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &nasaClient{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: false,
			},
		},
	}
}

func (c *nasaClient) FetchAsteroidFeed(ctx context.Context, startDate, endDate string) (string, error) {
	params := url.Values{}
	params.Add("start_date", startDate)
	if endDate != "" {
		params.Add("end_date", endDate)
	}
	params.Add("api_key", c.apiKey)

	body, err := c.get(ctx, opFeed, feedPath, params)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *nasaClient) FetchPictureOfDay(ctx context.Context) (*PictureOfDayResponse, error) {
	params := url.Values{}
	params.Add("api_key", c.apiKey)

	body, err := c.get(ctx, opAPOD, apodPath, params)
	if err != nil {
		return nil, err
	}

	var picture PictureOfDayResponse
	if err := json.Unmarshal(body, &picture); err != nil {
		return nil, &apperr.DecodeError{Op: opAPOD, Err: err}
	}
	if picture.URL == "" {
		return nil, &apperr.DecodeError{Op: opAPOD, Err: errors.New("url is missing")}
	}

	return &picture, nil
}

func (c *nasaClient) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}

	req.Header.Set("User-Agent", "Asteroid-Radar/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &apperr.RemoteError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
