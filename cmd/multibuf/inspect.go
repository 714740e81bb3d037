package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"github.com/epithet-ssh/multibuf/pkg/multibuf"
	"github.com/epithet-ssh/multibuf/pkg/packserver"
)

// InspectCLI prints the header of a packed buffer without unpacking it.
type InspectCLI struct {
	Source string `arg:"" help:"Packed buffer: path, - for stdin, or s3://bucket/key"`
	JSON   bool   `help:"Output in JSON format" short:"j"`
}

func (i *InspectCLI) Run(logger *slog.Logger, unified cue.Value, rc remote) error {
	ctx := context.Background()

	settings, err := loadUnpackSettings(unified, false, 0, "")
	if err != nil {
		return err
	}

	packed, err := fetch(ctx, i.Source, logger)
	if err != nil {
		return err
	}

	var summary packserver.InspectResponse
	if rc.client != nil {
		resp, err := rc.client.Inspect(ctx, packed)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", i.Source, err)
		}
		summary = *resp
	} else {
		h, err := multibuf.ParseHeader(packed, settings.Options()...)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", i.Source, err)
		}
		summary = packserver.Summarize(h, len(packed))
	}

	if i.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	lengths := make([]string, len(summary.Lengths))
	for n, l := range summary.Lengths {
		lengths[n] = strconv.Itoa(l)
	}

	fmt.Fprintf(stdout, "Buffers:      %d\n", summary.Count)
	fmt.Fprintf(stdout, "Header size:  %d\n", summary.HeaderSize)
	fmt.Fprintf(stdout, "Payload size: %d\n", summary.PayloadSize)
	fmt.Fprintf(stdout, "Total size:   %d\n", summary.TotalSize)
	fmt.Fprintf(stdout, "Complete:     %t\n", summary.Complete)
	fmt.Fprintf(stdout, "Lengths:      %s\n", strings.Join(lengths, ","))
	return nil
}
