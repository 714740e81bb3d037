package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"github.com/epithet-ssh/multibuf/pkg/blobstore"
	"github.com/epithet-ssh/multibuf/pkg/multibuf"
)

// PackCLI packs files, in argument order, into one packed buffer.
type PackCLI struct {
	Output string   `help:"Output location: path, - for stdout, or s3://bucket/key (a trailing / generates a key)" short:"o" default:"-"`
	Files  []string `arg:"" optional:"" help:"Files to pack, in order (- reads stdin)"`
}

func (c *PackCLI) Run(logger *slog.Logger, _ cue.Value, rc remote) error {
	ctx := context.Background()

	if err := checkStdinOnce(c.Files); err != nil {
		return err
	}

	buffers := make([][]byte, 0, len(c.Files))
	for _, name := range c.Files {
		data, err := readInput(name)
		if err != nil {
			return err
		}
		logger.Debug("read input", "file", name, "bytes", len(data))
		buffers = append(buffers, data)
	}

	var packed []byte
	if rc.client != nil {
		var err error
		packed, err = rc.client.Pack(ctx, buffers...)
		if err != nil {
			return fmt.Errorf("remote pack failed: %w", err)
		}
	} else {
		packed = multibuf.Pack(buffers...)
	}

	loc, err := blobstore.ParseLocation(c.Output)
	if err != nil {
		return err
	}
	store, err := blobstore.Open(ctx, loc, logger)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, loc.Key, packed); err != nil {
		return fmt.Errorf("failed to write packed buffer to %s: %w", loc, err)
	}

	logger.Info("packed buffers",
		"buffers", len(buffers),
		"bytes", len(packed),
		"output", loc.String())
	return nil
}

// checkStdinOnce rejects more than one "-": stdin can only be read once.
func checkStdinOnce(files []string) error {
	seen := false
	for i, name := range files {
		if name != "-" {
			continue
		}
		if seen {
			return fmt.Errorf("stdin (-) given more than once, again at argument %d", i+1)
		}
		seen = true
	}
	return nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// fetch reads a packed buffer from a location string.
func fetch(ctx context.Context, source string, logger *slog.Logger) ([]byte, error) {
	loc, err := blobstore.ParseLocation(source)
	if err != nil {
		return nil, err
	}
	store, err := blobstore.Open(ctx, loc, logger)
	if err != nil {
		return nil, err
	}
	data, err := store.Get(ctx, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read packed buffer from %s: %w", loc, err)
	}
	return data, nil
}
