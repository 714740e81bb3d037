package packserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler adapts handler to API Gateway HTTP API (v2) events.
// Bodies cross the gateway base64-encoded since packed buffers are binary.
func LambdaHandler(handler http.Handler, logger *slog.Logger) func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return func(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		body := []byte(request.Body)
		if request.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(request.Body)
			if err != nil {
				logger.Error("failed to decode request body", "error", err)
				return events.APIGatewayV2HTTPResponse{
					StatusCode: http.StatusBadRequest,
					Body:       "invalid base64 body",
				}, nil
			}
			body = decoded
		}

		path := request.RawPath
		if request.RawQueryString != "" {
			path += "?" + request.RawQueryString
		}

		req, err := http.NewRequestWithContext(ctx, request.RequestContext.HTTP.Method, path, bytes.NewReader(body))
		if err != nil {
			logger.Error("failed to create request", "error", err)
			return events.APIGatewayV2HTTPResponse{
				StatusCode: http.StatusInternalServerError,
				Body:       "Internal server error",
			}, nil
		}
		for k, v := range request.Headers {
			req.Header.Set(k, v)
		}
		req.ContentLength = int64(len(body))

		rw := &lambdaResponseWriter{
			headers: make(http.Header),
		}
		handler.ServeHTTP(rw, req)

		headers := make(map[string]string)
		for k, v := range rw.headers {
			if len(v) > 0 {
				headers[k] = v[0]
			}
		}

		return events.APIGatewayV2HTTPResponse{
			StatusCode:      rw.status(),
			Headers:         headers,
			Body:            base64.StdEncoding.EncodeToString(rw.body.Bytes()),
			IsBase64Encoded: true,
		}, nil
	}
}

// lambdaResponseWriter implements http.ResponseWriter for Lambda
type lambdaResponseWriter struct {
	headers    http.Header
	body       bytes.Buffer
	statusCode int
}

func (w *lambdaResponseWriter) Header() http.Header {
	return w.headers
}

func (w *lambdaResponseWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *lambdaResponseWriter) WriteHeader(statusCode int) {
	if w.statusCode == 0 {
		w.statusCode = statusCode
	}
}

func (w *lambdaResponseWriter) status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}
