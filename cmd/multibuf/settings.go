package main

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"github.com/epithet-ssh/multibuf/pkg/config"
	"github.com/epithet-ssh/multibuf/pkg/multibuf"
	"github.com/epithet-ssh/multibuf/pkg/packclient"
	"github.com/epithet-ssh/multibuf/pkg/tlsconfig"
)

const defaultNameTemplate = "part-{{index}}.bin"

// UnpackSettings is the "unpack" config section.
type UnpackSettings struct {
	Strict       bool   `json:"strict"`
	MaxBuffers   int    `json:"max_buffers"`
	NameTemplate string `json:"name_template"`
}

// Options converts the settings into multibuf decoding options.
func (s UnpackSettings) Options() []multibuf.Option {
	var opts []multibuf.Option
	if s.Strict {
		opts = append(opts, multibuf.Strict())
	}
	if s.MaxBuffers > 0 {
		opts = append(opts, multibuf.MaxBuffers(s.MaxBuffers))
	}
	return opts
}

// ServeSettings is the "serve" config section.
type ServeSettings struct {
	Listen       string           `json:"listen"`
	MaxBodyBytes int64            `json:"max_body_bytes"`
	TLS          tlsconfig.Config `json:"tls"`
}

// loadUnpackSettings reads the unpack section and applies flag overrides.
// Flags left at their zero value do not override the config file.
func loadUnpackSettings(unified cue.Value, strict bool, maxBuffers int, nameTemplate string) (UnpackSettings, error) {
	s := UnpackSettings{NameTemplate: defaultNameTemplate}
	if err := config.Section(unified, "unpack", &s); err != nil {
		return UnpackSettings{}, err
	}

	if strict {
		s.Strict = true
	}
	if maxBuffers != 0 {
		s.MaxBuffers = maxBuffers
	}
	if nameTemplate != "" {
		s.NameTemplate = nameTemplate
	}
	return s, nil
}

// loadServeSettings reads the serve section and applies flag overrides.
func loadServeSettings(unified cue.Value, listen string, maxBodyBytes int64, tlsCert, tlsKey string) (ServeSettings, error) {
	s := ServeSettings{Listen: ":8080"}
	if err := config.Section(unified, "serve", &s); err != nil {
		return ServeSettings{}, err
	}

	if listen != "" {
		s.Listen = listen
	}
	if maxBodyBytes != 0 {
		s.MaxBodyBytes = maxBodyBytes
	}
	if tlsCert != "" {
		s.TLS.CertFile = tlsCert
	}
	if tlsKey != "" {
		s.TLS.KeyFile = tlsKey
	}
	return s, nil
}

// ClientSettings is the "client" config section, used when pack, unpack
// and inspect run against a remote pack server.
type ClientSettings struct {
	Server  string           `json:"server"`
	Timeout string           `json:"timeout"`
	TLS     tlsconfig.Config `json:"tls"`
}

// loadClientSettings reads the client section and applies flag overrides.
func loadClientSettings(unified cue.Value, server string, insecure bool, caCert string) (ClientSettings, error) {
	var s ClientSettings
	if err := config.Section(unified, "client", &s); err != nil {
		return ClientSettings{}, err
	}

	if server != "" {
		s.Server = server
	}
	if insecure {
		s.TLS.Insecure = true
	}
	if caCert != "" {
		s.TLS.CACertFile = caCert
	}
	return s, nil
}

// remote carries the pack server client; client is nil when commands run
// locally.
type remote struct {
	client *packclient.Client
}

func newRemote(s ClientSettings) (remote, error) {
	if s.Server == "" {
		return remote{}, nil
	}
	if err := s.TLS.ValidateURL(s.Server); err != nil {
		return remote{}, err
	}

	var timeout time.Duration
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return remote{}, fmt.Errorf("invalid client timeout %q: %w", s.Timeout, err)
		}
		timeout = d
	}

	httpClient, err := tlsconfig.NewHTTPClient(s.TLS, timeout)
	if err != nil {
		return remote{}, err
	}
	return remote{client: packclient.New(s.Server, packclient.WithHTTPClient(httpClient))}, nil
}
