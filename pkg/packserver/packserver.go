// Package packserver exposes multibuf packing and unpacking over HTTP.
//
// Routes:
//
//	POST /pack     multipart body (form-data or mixed), parts packed in order
//	POST /unpack   packed body, answered with a multipart/mixed response
//	POST /inspect  packed body, answered with a JSON header summary
//	GET  /healthz  liveness probe
package packserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/epithet-ssh/multibuf/pkg/multibuf"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// ContentType is the media type of a packed body.
	ContentType = "application/x-multibuf"

	// DefaultMaxBodyBytes caps request bodies when Config.MaxBodyBytes is zero.
	DefaultMaxBodyBytes = 32 << 20

	// HeaderCount carries the number of buffers in a pack response.
	HeaderCount = "X-Multibuf-Count"

	// HeaderIndex carries a part's position in an unpack response.
	HeaderIndex = "X-Multibuf-Index"
)

// Config configures the HTTP handler.
type Config struct {
	Logger       *slog.Logger // Defaults to slog.Default()
	MaxBodyBytes int64        // Request body limit (default: 32 MiB)
	Strict       bool         // Unpack in strict mode
	MaxBuffers   int          // Maximum buffers per packed body (0: no limit)
}

type server struct {
	log          *slog.Logger
	maxBodyBytes int64
	unpackOpts   []multibuf.Option
}

// New creates the packing service handler.
func New(cfg Config) http.Handler {
	s := &server{
		log:          cfg.Logger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Strict {
		s.unpackOpts = append(s.unpackOpts, multibuf.Strict())
	}
	if cfg.MaxBuffers > 0 {
		s.unpackOpts = append(s.unpackOpts, multibuf.MaxBuffers(cfg.MaxBuffers))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/pack", s.pack)
	r.Post("/unpack", s.unpack)
	r.Post("/inspect", s.inspect)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	return r
}

func (s *server) pack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		s.fail(w, r, http.StatusUnsupportedMediaType, fmt.Errorf("expected multipart body: %w", err))
		return
	}

	var buffers [][]byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.failPart(w, r, len(buffers), err)
			return
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			s.failPart(w, r, len(buffers), err)
			return
		}
		buffers = append(buffers, data)
	}

	packed := multibuf.Pack(buffers...)

	s.log.Debug("packed buffers",
		"request_id", middleware.GetReqID(r.Context()),
		"buffers", len(buffers),
		"bytes", len(packed))

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set(HeaderCount, strconv.Itoa(len(buffers)))
	w.Header().Set("Content-Length", strconv.Itoa(len(packed)))
	w.WriteHeader(http.StatusOK)
	w.Write(packed)
}

func (s *server) unpack(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.failErr(w, r, err)
		return
	}

	buffers, err := multibuf.Unpack(body, s.unpackOpts...)
	if err != nil {
		s.failErr(w, r, err)
		return
	}

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	w.Header().Set(HeaderCount, strconv.Itoa(len(buffers)))
	w.WriteHeader(http.StatusOK)

	for i, b := range buffers {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"application/octet-stream"},
			HeaderIndex:    {strconv.Itoa(i)},
		})
		if err != nil {
			s.log.Error("failed to write part", "index", i, "error", err)
			return
		}
		if _, err := part.Write(b); err != nil {
			s.log.Error("failed to write part", "index", i, "error", err)
			return
		}
	}
	if err := mw.Close(); err != nil {
		s.log.Error("failed to close multipart response", "error", err)
	}
}

// InspectResponse summarizes the header of a packed body.
type InspectResponse struct {
	Count       int   `json:"count"`
	HeaderSize  int   `json:"header_size"`
	PayloadSize int   `json:"payload_size"`
	TotalSize   int   `json:"total_size"`
	Complete    bool  `json:"complete"`
	Lengths     []int `json:"lengths"`
}

// Summarize builds the inspect summary of a header read from a packed
// buffer of total bytes.
func Summarize(h multibuf.Header, total int) InspectResponse {
	return InspectResponse{
		Count:       h.Count(),
		HeaderSize:  h.Size,
		PayloadSize: h.PayloadSize(),
		TotalSize:   total,
		Complete:    h.Complete(total),
		Lengths:     h.Lengths,
	}
}

func (s *server) inspect(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.failErr(w, r, err)
		return
	}

	h, err := multibuf.ParseHeader(body, s.unpackOpts...)
	if err != nil {
		s.failErr(w, r, err)
		return
	}

	resp := Summarize(h, len(body))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("failed to encode inspect response", "error", err)
	}
}

func (s *server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("unable to read body: %w", err)
	}
	return body, nil
}

// failErr picks the status code for err: 413 for oversized bodies, 400 for
// malformed packed input, 500 otherwise.
func (s *server) failErr(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	var formatErr *multibuf.FormatError
	switch {
	case errors.As(err, &maxErr):
		s.fail(w, r, http.StatusRequestEntityTooLarge, err)
	case errors.As(err, &formatErr):
		s.fail(w, r, http.StatusBadRequest, err)
	default:
		s.fail(w, r, http.StatusInternalServerError, err)
	}
}

// failPart reports a multipart read error. A broken body is the client's
// fault (400) unless it was cut off by the size limit (413).
func (s *server) failPart(w http.ResponseWriter, r *http.Request, index int, err error) {
	err = fmt.Errorf("unable to read part %d: %w", index, err)

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.fail(w, r, http.StatusRequestEntityTooLarge, err)
		return
	}
	s.fail(w, r, http.StatusBadRequest, err)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.log.Warn("request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err)

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Info("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}
