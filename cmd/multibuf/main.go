package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"github.com/alecthomas/kong"
	"github.com/epithet-ssh/multibuf/pkg/config"
	"github.com/lmittmann/tint"
)

// CLI is the root command.
type CLI struct {
	Verbose int      `help:"Log verbosity (-v info, -vv debug)" short:"v" type:"counter"`
	Config  []string `help:"Config files or glob patterns (default: ~/.multibuf/*)" short:"F" sep:"none"`
	NoColor bool     `help:"Disable colored log output" env:"NO_COLOR"`

	Server   string `help:"Pack server URL; pack, unpack and inspect run remotely when set" env:"MULTIBUF_SERVER"`
	Insecure bool   `help:"Skip server certificate verification and allow http:// server URLs"`
	CACert   string `help:"PEM file of CAs trusted for the pack server" name:"ca-cert"`

	Pack    PackCLI    `cmd:"" help:"Pack files into a single packed buffer"`
	Unpack  UnpackCLI  `cmd:"" help:"Split a packed buffer back into files"`
	Inspect InspectCLI `cmd:"" help:"Show the length header of a packed buffer"`
	Serve   ServeCLI   `cmd:"" help:"Run the HTTP packing service"`
	Lambda  LambdaCLI  `cmd:"" help:"Run the HTTP packing service as an AWS Lambda function"`
}

// stdout is where commands write their results. Logs go to stderr so
// packed output on stdout stays clean.
var stdout io.Writer = os.Stdout

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("multibuf"),
		kong.Description("Pack byte buffers into one length-prefixed buffer and back."),
		kong.UsageOnError(),
	)

	logger := newLogger(os.Stderr, cli.Verbose, cli.NoColor)

	unified, err := loadConfig(cli.Config)
	ctx.FatalIfErrorf(err)

	clientSettings, err := loadClientSettings(unified, cli.Server, cli.Insecure, cli.CACert)
	ctx.FatalIfErrorf(err)
	rc, err := newRemote(clientSettings)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(logger, unified, rc)
	ctx.FatalIfErrorf(err)
}

func newLogger(w io.Writer, verbosity int, noColor bool) *slog.Logger {
	var level slog.Level
	switch verbosity {
	case 0:
		level = slog.LevelWarn
	case 1:
		level = slog.LevelInfo
	default: // 2+
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
	}))
}

// loadConfig unifies the given config patterns, falling back to
// ~/.multibuf/* when none are given.
func loadConfig(patterns []string) (cue.Value, error) {
	if len(patterns) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.LoadAndUnifyPaths(nil)
		}
		patterns = config.DefaultPatterns(filepath.Join(home, ".multibuf"))
	}

	expanded := make([]string, 0, len(patterns))
	for _, p := range patterns {
		e, err := expandPath(p)
		if err != nil {
			return cue.Value{}, err
		}
		expanded = append(expanded, e)
	}

	val, err := config.LoadAndUnifyPaths(expanded)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to load config: %w", err)
	}
	return val, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
