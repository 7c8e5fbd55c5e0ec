// Package config holds the server configuration surface: application
// identity, TCP binding, endpoints, user tokens, PKI location, and
// discovery registration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TCPConfig is the listener binding.
type TCPConfig struct {
	Host string
	Port uint16
}

// Endpoint describes one advertised endpoint.
type Endpoint struct {
	Path           string
	SecurityMode   string // "None", "Sign", "SignAndEncrypt"
	SecurityPolicy string
	UserTokenIDs   []string
}

// UserToken describes one way a client may authenticate. An empty User
// means anonymous.
type UserToken struct {
	User     string
	Password string
}

// Config enumerates everything the server core needs to run.
type Config struct {
	ApplicationName     string
	ApplicationURI      string
	ProductURI          string
	PKIDir              string
	CreateSampleKeypair bool
	TCP                 TCPConfig
	Endpoints           map[string]Endpoint
	UserTokens          map[string]UserToken
	DiscoveryServerURL  string
	MaxSubscriptions    uint32
	TrustClientCerts    bool
}

// Default returns a runnable local configuration with a single
// anonymous-access endpoint.
func Default() Config {
	return Config{
		ApplicationName:     "opcua-server",
		ApplicationURI:      "urn:localhost:opcua-server",
		ProductURI:          "urn:opcua-server",
		PKIDir:              "pki",
		CreateSampleKeypair: true,
		TCP:                 TCPConfig{Host: "127.0.0.1", Port: 4855},
		Endpoints: map[string]Endpoint{
			"none": {Path: "/", SecurityMode: "None", SecurityPolicy: "None", UserTokenIDs: []string{"anonymous"}},
		},
		UserTokens:       map[string]UserToken{"anonymous": {}},
		MaxSubscriptions: 100,
	}
}

// Validate checks the config is internally consistent: every endpoint's
// user token ids must resolve, and the binding must be plausible.
func (c *Config) Validate() error {
	if c.ApplicationName == "" {
		return errors.New("application_name must not be empty")
	}
	if c.ApplicationURI == "" {
		return errors.New("application_uri must not be empty")
	}
	if c.TCP.Port == 0 {
		return errors.New("tcp port must not be zero")
	}
	if len(c.Endpoints) == 0 {
		return errors.New("at least one endpoint is required")
	}
	for id, ep := range c.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("endpoint %q: path %q must start with /", id, ep.Path)
		}
		switch ep.SecurityMode {
		case "None", "Sign", "SignAndEncrypt":
		default:
			return fmt.Errorf("endpoint %q: unknown security mode %q", id, ep.SecurityMode)
		}
		for _, tok := range ep.UserTokenIDs {
			if _, ok := c.UserTokens[tok]; !ok {
				return fmt.Errorf("endpoint %q: unknown user token id %q", id, tok)
			}
		}
	}
	if c.DiscoveryServerURL != "" {
		u, err := url.Parse(c.DiscoveryServerURL)
		if err != nil || u.Scheme != "opc.tcp" || u.Host == "" {
			return fmt.Errorf("discovery_server_url %q is not a valid opc.tcp url", c.DiscoveryServerURL)
		}
	}
	return nil
}

// BaseEndpointURL is the opc.tcp url of the listener root.
func (c *Config) BaseEndpointURL() string {
	return fmt.Sprintf("opc.tcp://%s:%d", c.TCP.Host, c.TCP.Port)
}

// ListenAddr is the host:port the listener binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.TCP.Host, c.TCP.Port)
}
