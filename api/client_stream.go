// Package api - Stream-basierte Client-Methoden.
// Dieses Modul enthaelt alle Methoden, die NDJSON-Responses verwenden.

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

const maxBufferSize = 8 << 20

func (c *Client) stream(ctx context.Context, method, path string, data any, fn func([]byte) error) error {
	var reqBody *bytes.Buffer
	if data != nil {
		bts, err := json.Marshal(data)
		if err != nil {
			return err
		}

		reqBody = bytes.NewBuffer(bts)
	}

	requestURL := c.base.JoinPath(path)
	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/x-ndjson")
	request.Header.Set("User-Agent", userAgent())

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	scanner := bufio.NewScanner(response.Body)
	// increase the buffer size to avoid running out of space
	scanBuf := make([]byte, 0, maxBufferSize)
	scanner.Buffer(scanBuf, maxBufferSize)
	for scanner.Scan() {
		var errorResponse struct {
			Error string `json:"error,omitempty"`
		}

		bts := scanner.Bytes()
		if err := json.Unmarshal(bts, &errorResponse); err != nil {
			if response.StatusCode >= http.StatusBadRequest {
				return StatusError{
					StatusCode:   response.StatusCode,
					Status:       response.Status,
					ErrorMessage: string(bts),
				}
			}
			return errors.New(string(bts))
		}

		if response.StatusCode >= http.StatusBadRequest {
			return StatusError{
				StatusCode:   response.StatusCode,
				Status:       response.Status,
				ErrorMessage: errorResponse.Error,
			}
		}

		if errorResponse.Error != "" {
			return errors.New(errorResponse.Error)
		}

		if err := fn(bts); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// ProgressFunc is a function that [Client.Stats] and [Client.Blocks] invoke
// every time a base name has been processed. If this function returns an
// error, the request is aborted and the error returned.
type ProgressFunc func(ProgressResponse) error

// ErrIncompleteStream is returned when a stream ends without its final line.
var ErrIncompleteStream = errors.New("stream ended without result")

// streamResult leitet Fortschritts-Zeilen an fn weiter und dekodiert die
// Zeile mit Status success in result
func (c *Client) streamResult(ctx context.Context, path string, req any, fn ProgressFunc, result any) error {
	done := false
	err := c.stream(ctx, http.MethodPost, path, req, func(bts []byte) error {
		var p ProgressResponse
		if err := json.Unmarshal(bts, &p); err != nil {
			return err
		}

		// ohne Status ist die Zeile das Ergebnis einer nicht-streamenden Antwort
		if p.Status == StatusSuccess || p.Status == "" {
			done = true
			return json.Unmarshal(bts, result)
		}

		if fn != nil {
			return fn(p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !done {
		return ErrIncompleteStream
	}
	return nil
}

// Stats computes metrics for base names of a loaded file. fn is called for
// each processed base name and can be used to display a progress bar.
func (c *Client) Stats(ctx context.Context, req *StatsRequest, fn ProgressFunc) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.streamResult(ctx, "/api/stats", req, fn, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Blocks computes the mean L2 norm per block of a loaded file. fn is called
// for each processed base name.
func (c *Client) Blocks(ctx context.Context, req *BlocksRequest, fn ProgressFunc) (*BlocksResponse, error) {
	var resp BlocksResponse
	if err := c.streamResult(ctx, "/api/blocks", req, fn, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
