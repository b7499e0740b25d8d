package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// apiError is the error body returned by the node.
type apiError struct {
	Error string `json:"error"`
}

// httpGet performs a GET request and decodes the JSON response.
func (c *Client) httpGet(path string, result any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s:\n%w", path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	return decodeResponse("GET", path, resp, result)
}

// httpPost performs a POST request and decodes the JSON response.
func (c *Client) httpPost(path, contentType string, body []byte, result any) error {
	resp, err := c.http.Post(c.baseURL+path, contentType, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s:\n%w", path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	return decodeResponse("POST", path, resp, result)
}

// decodeResponse decodes a success or consensus failure body into result.
// A consensus failure still decodes the body and returns ErrNoConsensus.
func decodeResponse(method, path string, resp *http.Response, result any) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(result)

	case http.StatusUnprocessableEntity:
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%s %s: decode body:\n%w", method, path, err)
		}
		return ErrNoConsensus

	case http.StatusNotFound:
		return ErrNotFound
	}

	var e apiError
	json.NewDecoder(resp.Body).Decode(&e)

	return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
}
