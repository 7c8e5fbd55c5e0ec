package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/alxayo/opcua-server/internal/config"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds user supplied flag values prior to translation into
// config.Config so main.go can validate and map.
type cliConfig struct {
	host               string
	port               uint
	applicationName    string
	applicationURI     string
	productURI         string
	pkiDir             string
	createSampleKeys   bool
	trustClientCerts   bool
	discoveryServerURL string
	maxSubscriptions   uint
	userTokens         []string
	logLevel           string
	showVersion        bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("opcua-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var tokens stringSliceFlag

	fs.StringVar(&cfg.host, "host", "127.0.0.1", "Listen host")
	fs.UintVar(&cfg.port, "port", 4855, "Listen port (4840 is reserved for discovery servers)")
	fs.StringVar(&cfg.applicationName, "app-name", "opcua-server", "Application name")
	fs.StringVar(&cfg.applicationURI, "app-uri", "urn:localhost:opcua-server", "Application uri")
	fs.StringVar(&cfg.productURI, "product-uri", "urn:opcua-server", "Product uri")
	fs.StringVar(&cfg.pkiDir, "pki-dir", "pki", "PKI directory for server certificate and key")
	fs.BoolVar(&cfg.createSampleKeys, "create-sample-keypair", true, "Create a self-signed keypair when none exists")
	fs.BoolVar(&cfg.trustClientCerts, "trust-client-certs", false, "Accept any parseable client certificate")
	fs.StringVar(&cfg.discoveryServerURL, "discovery-url", "", "Discovery server to register with (opc.tcp://...)")
	fs.UintVar(&cfg.maxSubscriptions, "max-subscriptions", 100, "Maximum subscriptions per server")
	fs.Var(&tokens, "user-token", "User token in format id=user:password (can be specified multiple times)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.userTokens = tokens

	if cfg.port == 0 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	if cfg.discoveryServerURL != "" {
		u, err := url.Parse(cfg.discoveryServerURL)
		if err != nil || u.Scheme != "opc.tcp" || u.Host == "" {
			return nil, fmt.Errorf("discovery-url %q must be an opc.tcp url", cfg.discoveryServerURL)
		}
	}
	for _, tok := range cfg.userTokens {
		if _, _, _, err := parseUserToken(tok); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// stringSliceFlag implements flag.Value for repeatable string flags.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ", ") }

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// parseUserToken splits id=user:password.
func parseUserToken(raw string) (id, user, password string, err error) {
	idRest := strings.SplitN(raw, "=", 2)
	if len(idRest) != 2 || idRest[0] == "" {
		return "", "", "", fmt.Errorf("invalid user-token %q, expected id=user:password", raw)
	}
	userPass := strings.SplitN(idRest[1], ":", 2)
	if len(userPass) != 2 || userPass[0] == "" {
		return "", "", "", fmt.Errorf("invalid user-token %q, expected id=user:password", raw)
	}
	return idRest[0], userPass[0], userPass[1], nil
}

// serverConfig maps the parsed flags onto the core config.
func (c *cliConfig) serverConfig() config.Config {
	cfg := config.Default()
	cfg.ApplicationName = c.applicationName
	cfg.ApplicationURI = c.applicationURI
	cfg.ProductURI = c.productURI
	cfg.PKIDir = c.pkiDir
	cfg.CreateSampleKeypair = c.createSampleKeys
	cfg.TrustClientCerts = c.trustClientCerts
	cfg.TCP = config.TCPConfig{Host: c.host, Port: uint16(c.port)}
	cfg.DiscoveryServerURL = c.discoveryServerURL
	cfg.MaxSubscriptions = uint32(c.maxSubscriptions)

	for _, raw := range c.userTokens {
		id, user, password, err := parseUserToken(raw)
		if err != nil {
			continue // validated in parseFlags
		}
		cfg.UserTokens[id] = config.UserToken{User: user, Password: password}
		for epID, ep := range cfg.Endpoints {
			ep.UserTokenIDs = append(ep.UserTokenIDs, id)
			cfg.Endpoints[epID] = ep
		}
	}
	return cfg
}
