package napi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/logger"
)

// ProtocolNAPI represents a NAPI daemon.
type ProtocolNAPI struct {
	http          *http.Client
	httpHost      string
	httpUserAgent string
}

// GetConnectionInfo returns the basic connection information used to
// interact with the daemon.
func (r *ProtocolNAPI) GetConnectionInfo() (*ConnectionInfo, error) {
	info := ConnectionInfo{
		URL:      r.httpHost,
		Protocol: "napi",
	}

	return &info, nil
}

// RawQuery allows directly querying the NAPI API, returning the raw
// response body. Intended for tooling that needs paths the typed methods
// don't cover.
func (r *ProtocolNAPI) RawQuery(method string, path string, data any) (json.RawMessage, error) {
	body, _, err := r.rawQuery(method, fmt.Sprintf("%s%s", r.httpHost, path), data)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(body), nil
}

// Internal functions

func (r *ProtocolNAPI) rawQuery(method string, url string, data any) ([]byte, http.Header, error) {
	var req *http.Request
	var err error

	logger.Debug("Sending request to NAPI", logger.Ctx{"method": method, "url": url})

	if data != nil {
		buf := bytes.Buffer{}
		err := json.NewEncoder(&buf).Encode(data)
		if err != nil {
			return nil, nil, err
		}

		req, err = http.NewRequest(method, url, &buf)
		if err != nil {
			return nil, nil, err
		}

		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			return nil, nil, err
		}
	}

	if r.httpUserAgent != "" {
		req.Header.Set("User-Agent", r.httpUserAgent)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode >= 400 {
		// Every failure carries the NAPI error envelope.
		apiErr := api.Error{}
		err = json.Unmarshal(body, &apiErr)
		if err != nil || apiErr.Code == "" {
			return nil, nil, fmt.Errorf("Failed to fetch %s: %s", url, resp.Status)
		}

		apiErr.SetStatus(resp.StatusCode)
		return nil, nil, &apiErr
	}

	return body, resp.Header, nil
}

func (r *ProtocolNAPI) query(method string, path string, params url.Values, data any) ([]byte, http.Header, error) {
	url := fmt.Sprintf("%s%s", r.httpHost, path)
	if len(params) > 0 {
		url = fmt.Sprintf("%s?%s", url, params.Encode())
	}

	return r.rawQuery(method, url, data)
}

// queryStruct runs a request and decodes the entity body into target.
// Deletes pass a nil target; the 204 body is empty.
func (r *ProtocolNAPI) queryStruct(method string, path string, params url.Values, data any, target any) error {
	body, _, err := r.query(method, path, params, data)
	if err != nil {
		return err
	}

	if target == nil || len(body) == 0 {
		return nil
	}

	return json.Unmarshal(body, target)
}

// queryList runs a list request, decoding the page into target and
// returning the collection total from the X-Total-Count header.
func (r *ProtocolNAPI) queryList(path string, params url.Values, target any) (int, error) {
	body, headers, err := r.query("GET", path, params, nil)
	if err != nil {
		return 0, err
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return 0, err
	}

	total, err := strconv.Atoi(headers.Get("X-Total-Count"))
	if err != nil {
		return 0, fmt.Errorf("Invalid X-Total-Count header: %w", err)
	}

	return total, nil
}

func (r *ProtocolNAPI) websocket(path string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(r.httpHost, "http") + path

	headers := http.Header{}
	if r.httpUserAgent != "" {
		headers.Set("User-Agent", r.httpUserAgent)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, headers)
	if err != nil {
		return nil, err
	}

	logger.Debug("Connected to the websocket", logger.Ctx{"url": url})

	return conn, nil
}
