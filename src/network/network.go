package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/logger"
)

// maxBodyBytes caps how much of a peer response is read into memory.
const maxBodyBytes = 8 << 20

// Response is a completed peer round trip.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out interface{}) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("invalid peer response: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// NetworkManager performs HTTP round trips to a named peer. Every request
// carries its own deadline; transport failures and timeouts come back as
// PeerUnavailable errors. Non-2xx statuses are returned, not converted.
type NetworkManager struct {
	Peer    string
	Client  *http.Client
	Timeout time.Duration
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewNetworkManager(peer string, timeout time.Duration, log *logger.Logger) *NetworkManager {
	return &NetworkManager{
		Peer:    peer,
		Client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		Timeout: timeout,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with query parameters.
func (nm *NetworkManager) Get(ctx context.Context, urlStr string, params map[string]string, headers map[string]string) (*Response, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()

	return nm.Do(ctx, http.MethodGet, reqURL.String(), headers, nil)
}

// -----------------------------------------------------------------------------

// PostJSON sends body encoded as JSON.
func (nm *NetworkManager) PostJSON(ctx context.Context, urlStr string, body interface{}, headers map[string]string) (*Response, error) {
	return nm.Do(ctx, http.MethodPost, urlStr, headers, body)
}

// -----------------------------------------------------------------------------

// Do performs a single request. body, when non-nil, is JSON encoded.
func (nm *NetworkManager) Do(ctx context.Context, method, urlStr string, headers map[string]string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if nm.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nm.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := nm.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			nm.Logger.Warning("%s %s %s timed out after %v", nm.Peer, method, req.URL.Path, time.Since(start))
		} else {
			nm.Logger.Warning("%s %s %s failed: %v", nm.Peer, method, req.URL.Path, err)
		}
		return nil, helpers.NewPeerUnavailableError(nm.Peer, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, helpers.NewPeerUnavailableError(nm.Peer, err)
	}

	nm.Logger.Debug("%s %s %s -> %d (%v)", nm.Peer, method, req.URL.Path, resp.StatusCode, time.Since(start))
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
