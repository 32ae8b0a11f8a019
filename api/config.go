package api

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Config for the consumption API.
type Config struct {
	// Listen must be a loopback address.
	Listen string `mapstructure:"api-listen"`
	// Origin is the only origin allowed to call the API from a browser.
	Origin string `mapstructure:"api-origin"`
}

// DefaultConfig returns the default API config.
func DefaultConfig() Config {
	return Config{
		Listen: "127.0.0.1:3000",
		Origin: "http://localhost:3000",
	}
}

// Validate checks that the API is only reachable from the local machine.
func (c Config) Validate() error {
	if err := ValidateLoopback(c.Listen); err != nil {
		return err
	}
	u, err := url.Parse(c.Origin)
	if err != nil {
		return fmt.Errorf("parse api origin %q: %w", c.Origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api origin %q must be scheme://host[:port]", c.Origin)
	}
	return nil
}

// ValidateLoopback returns an error unless addr binds a loopback interface.
func ValidateLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return errors.New("api must listen on a loopback address, got " + addr)
	}
	return nil
}
