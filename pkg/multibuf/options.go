package multibuf

// config holds decoding configuration.
type config struct {
	strict     bool
	maxBuffers int
}

// Option configures Unpack, ParseHeader and DecodeHeader.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{
		strict:     false,
		maxBuffers: 0, // no limit; the header size already bounds the count
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Strict rejects length tokens with leading zeros ("07") and bytes left over
// after the last payload.
//
// Pack never produces either, so strict mode is safe for buffers known to
// come from this package.
//
// Default: false (leading zeros are parsed, trailing bytes are ignored)
func Strict() Option {
	return func(c *config) {
		c.strict = true
	}
}

// MaxBuffers sets the maximum number of buffers a header may list.
// Headers listing more return ErrTooManyBuffers.
//
// A value <= 0 disables the limit.
//
// Default: no limit
func MaxBuffers(n int) Option {
	return func(c *config) {
		c.maxBuffers = n
	}
}
