// Package packclient talks to a pack server over HTTP.
package packclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/epithet-ssh/multibuf/pkg/packserver"
)

// MalformedInputError indicates the server rejected the packed body.
type MalformedInputError struct {
	Message string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed packed buffer: %s", e.Message)
}

// BodyTooLargeError indicates the request exceeded the server's body limit.
type BodyTooLargeError struct {
	Message string
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("request too large: %s", e.Message)
}

// ServerUnavailableError indicates a 5xx answer from the server.
type ServerUnavailableError struct {
	StatusCode int
	Message    string
}

func (e *ServerUnavailableError) Error() string {
	return fmt.Sprintf("pack server unavailable (%d): %s", e.StatusCode, e.Message)
}

// InvalidRequestError covers any other 4xx answer.
type InvalidRequestError struct {
	StatusCode int
	Message    string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request (%d): %s", e.StatusCode, e.Message)
}

// Client is a pack server client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the server at baseURL.
func New(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}

	for _, o := range options {
		o.apply(client)
	}

	return client
}

// Option configures the client.
type Option interface {
	apply(*Client)
}

type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) {
	f(c)
}

// WithHTTPClient specifies the http client to use.
func WithHTTPClient(httpClient *http.Client) Option {
	return optionFunc(func(c *Client) {
		c.httpClient = httpClient
	})
}

// Pack sends buffers as multipart/mixed parts and returns the packed body.
func (c *Client) Pack(ctx context.Context, buffers ...[]byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, b := range buffers {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":         {"application/octet-stream"},
			packserver.HeaderIndex: {strconv.Itoa(i)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(b); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	res, err := c.post(ctx, "/pack", "multipart/mixed; boundary="+mw.Boundary(), &body)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	return io.ReadAll(res.Body)
}

// Unpack sends a packed body and returns the buffers the server split it into.
func (c *Client) Unpack(ctx context.Context, packed []byte) ([][]byte, error) {
	res, err := c.post(ctx, "/unpack", packserver.ContentType, bytes.NewReader(packed))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	mediaType, params, err := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("invalid unpack response: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("invalid unpack response: unexpected content type %q", mediaType)
	}

	buffers := [][]byte{}
	mr := multipart.NewReader(res.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part %d: %w", len(buffers), err)
		}
		if idx := part.Header.Get(packserver.HeaderIndex); idx != "" && idx != strconv.Itoa(len(buffers)) {
			part.Close()
			return nil, fmt.Errorf("invalid unpack response: part %d has index %s", len(buffers), idx)
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %d: %w", len(buffers), err)
		}
		buffers = append(buffers, data)
	}

	if count := res.Header.Get(packserver.HeaderCount); count != "" && count != strconv.Itoa(len(buffers)) {
		return nil, fmt.Errorf("invalid unpack response: expected %s parts, got %d", count, len(buffers))
	}
	return buffers, nil
}

// Inspect asks the server to summarize the header of a packed body.
func (c *Client) Inspect(ctx context.Context, packed []byte) (*packserver.InspectResponse, error) {
	res, err := c.post(ctx, "/inspect", packserver.ContentType, bytes.NewReader(packed))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resp := packserver.InspectResponse{}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("invalid inspect response: %w", err)
	}
	return &resp, nil
}

// post issues the request and maps non-200 answers to typed errors. On
// success the caller owns the response body.
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	rq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	rq.Header.Set("Content-Type", contentType)

	res, err := c.httpClient.Do(rq)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusOK {
		return res, nil
	}
	defer res.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	message := string(msg)

	switch {
	case res.StatusCode == http.StatusBadRequest:
		return nil, &MalformedInputError{Message: message}
	case res.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, &BodyTooLargeError{Message: message}
	case res.StatusCode >= 500:
		return nil, &ServerUnavailableError{StatusCode: res.StatusCode, Message: message}
	default:
		return nil, &InvalidRequestError{StatusCode: res.StatusCode, Message: message}
	}
}
