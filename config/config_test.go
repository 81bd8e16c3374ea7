package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xellDart/ERC721-IP/attest"
	"github.com/xellDart/ERC721-IP/service"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultMatchesServiceDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	opts, err := cfg.Options()
	require.NoError(t, err)
	require.Equal(t, service.DefaultOptions(), opts)
}

func TestReadConfigFromFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listen": ":9000",
		"backend": "postgres",
		"databaseURL": "postgres://file",
		"schema": "v1",
		"chainId": 5
	}`), 0o600))

	cfg := Default()
	require.NoError(t, ReadConfigFromFile(cfg, path))
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{
		"DATABASE_URL":       "postgres://env",
		"IPP_CHAIN_ID":       "11155111",
		"IPP_LEDGER_TIMEOUT": "750ms",
		"IPP_MIGRATE":        "true",
		"IPP_LISTEN":         "",
	})))
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, "postgres://env", cfg.DatabaseURL)
	require.Equal(t, uint64(11155111), cfg.ChainID)
	require.Equal(t, 750*time.Millisecond, cfg.LedgerTimeout)
	require.True(t, cfg.Migrate)

	opts, err := cfg.Options()
	require.NoError(t, err)
	require.Equal(t, attest.SchemaV1, opts.Schema)
	require.Equal(t, uint64(11155111), opts.Domain.ChainID)
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	require.Error(t, Default().ApplyEnv(env(map[string]string{"IPP_CHAIN_ID": "one"})))
	require.Error(t, Default().ApplyEnv(env(map[string]string{"IPP_LEDGER_TIMEOUT": "soon"})))
	require.Error(t, Default().ApplyEnv(env(map[string]string{"IPP_MIGRATE": "maybe"})))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listen", func(c *Config) { c.Listen = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "redis" }},
		{"postgres without url", func(c *Config) { c.Backend = BackendPostgres }},
		{"mysql without dsn", func(c *Config) { c.Backend = BackendMySQL }},
		{"grpc without addr", func(c *Config) { c.Backend = BackendGRPC }},
		{"grpc serving ledger", func(c *Config) { c.Backend, c.LedgerAddr, c.GRPCListen = BackendGRPC, "ledger:9090", ":9090" }},
		{"bad schema", func(c *Config) { c.Schema = "v3" }},
		{"bad contract", func(c *Config) { c.VerifyingContract = "0xabc" }},
		{"zero chain", func(c *Config) { c.ChainID = 0 }},
		{"long issuer name", func(c *Config) { c.IssuerName = "an issuer name longer than thirty-two bytes" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestIssuerNameDoesNotRenameRegistry(t *testing.T) {
	cfg := Default()
	cfg.IssuerName = "Acme Patents"
	opts, err := cfg.Options()
	require.NoError(t, err)
	require.Equal(t, "Acme Patents", opts.Issuer.Name)
	require.Equal(t, service.DefaultName, opts.Name)
	require.Equal(t, service.DefaultName, service.New(nil, opts).Name())

	cfg.Name = "Acme Registry"
	opts, err = cfg.Options()
	require.NoError(t, err)
	require.Equal(t, "Acme Registry", opts.Name)
	require.Equal(t, "Acme Patents", opts.Issuer.Name)
}
