package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"cuelang.org/go/cue"
	"github.com/cbroglie/mustache"
	"github.com/epithet-ssh/multibuf/pkg/blobstore"
	"github.com/epithet-ssh/multibuf/pkg/multibuf"
)

// UnpackCLI splits a packed buffer into one file per buffer.
type UnpackCLI struct {
	Source       string `arg:"" help:"Packed buffer: path, - for stdin, or s3://bucket/key"`
	Dir          string `help:"Directory to write buffers into" short:"d" default:"."`
	Strict       bool   `help:"Reject leading zeros and bytes after the last payload"`
	MaxBuffers   int    `help:"Maximum number of buffers to accept (0: no limit)" name:"max-buffers"`
	NameTemplate string `help:"Mustache template for file names; variables: index, size (default: part-{{index}}.bin)" name:"name-template"`
}

func (c *UnpackCLI) Run(logger *slog.Logger, unified cue.Value, rc remote) error {
	ctx := context.Background()

	settings, err := loadUnpackSettings(unified, c.Strict, c.MaxBuffers, c.NameTemplate)
	if err != nil {
		return err
	}

	packed, err := fetch(ctx, c.Source, logger)
	if err != nil {
		return err
	}

	var buffers [][]byte
	if rc.client != nil {
		// The server applies its own strict and max-buffers settings.
		buffers, err = rc.client.Unpack(ctx, packed)
	} else {
		buffers, err = multibuf.Unpack(packed, settings.Options()...)
	}
	if err != nil {
		return fmt.Errorf("failed to unpack %s: %w", c.Source, err)
	}

	names, err := outputNames(settings.NameTemplate, buffers)
	if err != nil {
		return err
	}

	store := blobstore.NewFileStore(c.Dir)
	for i, b := range buffers {
		if err := store.Put(ctx, names[i], b); err != nil {
			return err
		}
		logger.Debug("wrote buffer", "index", i, "file", names[i], "bytes", len(b))
	}

	logger.Info("unpacked buffers",
		"buffers", len(buffers),
		"bytes", len(packed),
		"dir", c.Dir)
	return nil
}

// outputNames renders one file name per buffer. Names must be plain file
// names and distinct from each other.
func outputNames(tmpl string, buffers [][]byte) ([]string, error) {
	parsed, err := mustache.ParseString(tmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid name template %q: %w", tmpl, err)
	}

	names := make([]string, len(buffers))
	seen := make(map[string]int, len(buffers))
	for i, b := range buffers {
		name, err := parsed.Render(map[string]any{
			"index": i,
			"size":  len(b),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render name for buffer %d: %w", i, err)
		}

		if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
			return nil, fmt.Errorf("name template produced invalid file name %q for buffer %d", name, i)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("name template produced %q for both buffer %d and %d", name, prev, i)
		}
		seen[name] = i
		names[i] = name
	}
	return names, nil
}
