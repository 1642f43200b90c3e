// Package api - Einfache API-Methoden des Clients.
// Dieses Modul enthaelt alle nicht-streaming API-Methoden.

package api

import (
	"context"
	"net/http"
)

// Heartbeat checks if the server has started and is responsive; if yes, it
// returns nil, otherwise an error.
func (c *Client) Heartbeat(ctx context.Context) error {
	if err := c.do(ctx, http.MethodHead, "/", nil, nil); err != nil {
		return err
	}
	return nil
}

// Version returns the server version as a string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version struct {
		Version string `json:"version"`
	}

	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}

	return version.Version, nil
}

// Load starts a worker for a safetensors file on the server and waits until
// the file is ingested.
func (c *Client) Load(ctx context.Context, req *LoadRequest) (*LoadResponse, error) {
	var resp LoadResponse
	if err := c.do(ctx, http.MethodPost, "/api/load", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unload terminates the worker of a loaded file.
func (c *Client) Unload(ctx context.Context, req *UnloadRequest) error {
	return c.do(ctx, http.MethodDelete, "/api/unload", req, nil)
}

// List lists loaded files.
func (c *Client) List(ctx context.Context) (*ProcessResponse, error) {
	var lr ProcessResponse
	if err := c.do(ctx, http.MethodGet, "/api/ps", nil, &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// Show obtains the network summary and metadata of a loaded file.
func (c *Client) Show(ctx context.Context, req *ShowRequest) (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.do(ctx, http.MethodPost, "/api/show", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Keys lists the tensor keys of a loaded file.
func (c *Client) Keys(ctx context.Context, req *KeysRequest) (*KeysResponse, error) {
	var resp KeysResponse
	if err := c.do(ctx, http.MethodPost, "/api/keys", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
