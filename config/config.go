package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xellDart/ERC721-IP/attest"
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
	"github.com/xellDart/ERC721-IP/service"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendGRPC     = "grpc"
)

type Config struct {
	Listen     string `json:"listen"`
	GRPCListen string `json:"grpcListen,omitempty"` // empty disables the ledger service

	Backend       string        `json:"backend"`
	DatabaseURL   string        `json:"databaseURL,omitempty"` // postgres URL or mysql DSN
	LedgerAddr    string        `json:"ledgerAddr,omitempty"`
	LedgerTimeout time.Duration `json:"ledgerTimeout,omitempty"`
	Migrate       bool          `json:"migrate"`

	Schema            string `json:"schema"`
	DomainName        string `json:"domainName"`
	DomainVersion     string `json:"domainVersion"`
	ChainID           uint64 `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
	IssuerName        string `json:"issuerName"`
	IssuerWallet      string `json:"issuerWallet"`
	Symbol            string `json:"symbol"`
	Name              string `json:"name"` // registry name, not the issuer's
}

// Default mirrors service.DefaultOptions with an in-memory ledger.
func Default() *Config {
	opts := service.DefaultOptions()
	return &Config{
		Listen:            ":8080",
		Backend:           BackendMemory,
		LedgerTimeout:     5 * time.Second,
		Schema:            string(opts.Schema),
		DomainName:        opts.Domain.Name,
		DomainVersion:     opts.Domain.Version,
		ChainID:           opts.Domain.ChainID,
		VerifyingContract: opts.Domain.VerifyingContract.Hex(),
		IssuerName:        opts.Issuer.Name,
		IssuerWallet:      opts.Issuer.Wallet.Hex(),
		Symbol:            opts.Symbol,
		Name:              opts.Name,
	}
}

// ReadConfigFromFile overlays the JSON file at path onto config.
func ReadConfigFromFile(config *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, config)
}

// Load builds the effective configuration: defaults, then the optional JSON
// file, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := ReadConfigFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from IPP_* variables and DATABASE_URL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("IPP_LISTEN", &c.Listen)
	str("IPP_GRPC_LISTEN", &c.GRPCListen)
	str("IPP_BACKEND", &c.Backend)
	str("DATABASE_URL", &c.DatabaseURL)
	str("IPP_LEDGER_ADDR", &c.LedgerAddr)
	str("IPP_SCHEMA", &c.Schema)
	str("IPP_VERIFYING_CONTRACT", &c.VerifyingContract)

	if v, ok := lookup("IPP_CHAIN_ID"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("IPP_CHAIN_ID must be an unsigned integer: %w", err)
		}
		c.ChainID = n
	}
	if v, ok := lookup("IPP_LEDGER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IPP_LEDGER_TIMEOUT: %w", err)
		}
		c.LedgerTimeout = d
	}
	if v, ok := lookup("IPP_MIGRATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("IPP_MIGRATE: %w", err)
		}
		c.Migrate = b
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres, BackendMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("backend %s needs DATABASE_URL", c.Backend)
		}
	case BackendGRPC:
		if c.LedgerAddr == "" {
			return errors.New("backend grpc needs IPP_LEDGER_ADDR")
		}
		if c.GRPCListen != "" {
			return errors.New("a grpc-backed registry cannot also serve the ledger")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	_, err := c.Options()
	return err
}

// Options converts the signing parameters into service.Options.
func (c *Config) Options() (service.Options, error) {
	schema, err := attest.ParseSchema(c.Schema)
	if err != nil {
		return service.Options{}, err
	}
	contract, err := model.ParseAddress(c.VerifyingContract)
	if err != nil {
		return service.Options{}, fmt.Errorf("verifyingContract: %w", err)
	}
	wallet, err := model.ParseAddress(c.IssuerWallet)
	if err != nil {
		return service.Options{}, fmt.Errorf("issuerWallet: %w", err)
	}
	if _, err := typeddata.FormatBytes32String(c.IssuerName); err != nil {
		return service.Options{}, fmt.Errorf("issuerName: %w", err)
	}
	if c.ChainID == 0 {
		return service.Options{}, errors.New("chainId must be positive")
	}
	return service.Options{
		Domain: typeddata.Domain{
			Name:              c.DomainName,
			Version:           c.DomainVersion,
			ChainID:           c.ChainID,
			VerifyingContract: contract,
		},
		Issuer: model.Identity{Name: c.IssuerName, Wallet: wallet},
		Schema: schema,
		Symbol: c.Symbol,
		Name:   c.Name,
	}, nil
}
