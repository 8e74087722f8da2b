package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/crypto"
)

// Config carries the node's startup parameters. GenesisAlloc maps bech32
// addresses to balances in base units and is applied once against an empty
// data directory.
type Config struct {
	RPCAddress        string            `toml:"RPCAddress"`
	MetricsAddress    string            `toml:"MetricsAddress"`
	DataDir           string            `toml:"DataDir"`
	NetworkName       string            `toml:"NetworkName"`
	Environment       string            `toml:"Environment"`
	AdminAddress      string            `toml:"AdminAddress"`
	RPCAuthTokenEnv   string            `toml:"RPCAuthTokenEnv"`
	FundingPeriodDays uint32            `toml:"FundingPeriodDays"`
	MaxExtensionDays  uint32            `toml:"MaxExtensionDays"`
	GenesisAlloc      map[string]string `toml:"GenesisAlloc"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./npo-data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "npo-local"
	}
	if strings.TrimSpace(c.RPCAuthTokenEnv) == "" {
		c.RPCAuthTokenEnv = "NPO_RPC_TOKEN"
	}
	if c.FundingPeriodDays == 0 {
		c.FundingPeriodDays = 30
	}
	if c.MaxExtensionDays == 0 {
		c.MaxExtensionDays = 90
	}
	if c.GenesisAlloc == nil {
		c.GenesisAlloc = map[string]string{}
	}
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.MaxExtensionDays < c.FundingPeriodDays {
		return fmt.Errorf("config: MaxExtensionDays %d below FundingPeriodDays %d", c.MaxExtensionDays, c.FundingPeriodDays)
	}
	if admin := strings.TrimSpace(c.AdminAddress); admin != "" {
		if _, err := crypto.DecodeAddress(admin); err != nil {
			return fmt.Errorf("config: invalid AdminAddress: %w", err)
		}
	}
	for addr, amount := range c.GenesisAlloc {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(addr)); err != nil {
			return fmt.Errorf("config: invalid genesis address %s: %w", addr, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
		if !ok || balance.Sign() < 0 {
			return fmt.Errorf("config: invalid genesis balance %q for %s", amount, addr)
		}
	}
	return nil
}

// Admin returns the decoded admin address and whether one was configured.
func (c *Config) Admin() ([20]byte, bool, error) {
	admin := strings.TrimSpace(c.AdminAddress)
	if admin == "" {
		return [20]byte{}, false, nil
	}
	decoded, err := crypto.DecodeAddress(admin)
	if err != nil {
		return [20]byte{}, false, err
	}
	return decoded.Raw(), true, nil
}

// Alloc returns the decoded genesis allocation.
func (c *Config) Alloc() (map[[20]byte]*big.Int, error) {
	alloc := make(map[[20]byte]*big.Int, len(c.GenesisAlloc))
	for addr, amount := range c.GenesisAlloc {
		decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
		if err != nil {
			return nil, fmt.Errorf("config: invalid genesis address %s: %w", addr, err)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
		if !ok || balance.Sign() < 0 {
			return nil, fmt.Errorf("config: invalid genesis balance %q for %s", amount, addr)
		}
		alloc[decoded.Raw()] = balance
	}
	return alloc, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
