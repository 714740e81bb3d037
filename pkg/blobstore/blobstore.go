// Package blobstore reads and writes packed buffers as whole objects, on
// the local filesystem, on stdin/stdout, or in S3.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ContentType is the media type stored alongside packed objects.
const ContentType = "application/x-multibuf"

// Extension is appended to generated object keys.
const Extension = ".mbuf"

// ErrNotFound indicates the requested object does not exist.
var ErrNotFound = errors.New("blobstore: object not found")

// Store reads and writes whole objects.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Location is a parsed object location.
type Location struct {
	Scheme string // "s3", "file" or "-" for stdio
	Bucket string // S3 only
	Key    string // Object key or file path
}

func (l Location) String() string {
	switch l.Scheme {
	case "s3":
		return "s3://" + l.Bucket + "/" + l.Key
	case "-":
		return "-"
	default:
		return l.Key
	}
}

// ParseLocation parses "s3://bucket/key", "-" (stdin/stdout) or a filesystem path.
//
// An S3 key that is empty or ends in "/" is a prefix: a random object name
// is appended so each write lands on a fresh key.
func ParseLocation(location string) (Location, error) {
	if location == "" {
		return Location{}, errors.New("blobstore: empty location")
	}
	if location == "-" {
		return Location{Scheme: "-"}, nil
	}

	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return Location{Scheme: "file", Key: location}, nil
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("blobstore: missing bucket in %q", location)
	}
	if key == "" || strings.HasSuffix(key, "/") {
		key += uuid.NewString() + Extension
	}

	return Location{Scheme: "s3", Bucket: bucket, Key: key}, nil
}

// Open returns a Store able to serve loc; callers address it with loc.Key.
// S3 clients are built from the default AWS config chain (environment,
// shared config, instance role).
func Open(ctx context.Context, loc Location, logger *slog.Logger) (Store, error) {
	switch loc.Scheme {
	case "-":
		return NewStdioStore(), nil
	case "file":
		return NewFileStore(""), nil
	case "s3":
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewS3Store(S3StoreConfig{
			Client: s3.NewFromConfig(cfg),
			Bucket: loc.Bucket,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("blobstore: unsupported scheme %q", loc.Scheme)
	}
}
