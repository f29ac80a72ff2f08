package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"swapsettle/native/swap"
)

// EngineSection mirrors the engine parameters in the configuration file.
// Amounts are decimal strings in the smallest stable-value unit (6 decimals).
type EngineSection struct {
	MinAmount      string `toml:"MinAmount"`
	MaxAmount      string `toml:"MaxAmount"`
	MaxSlippageBps uint64 `toml:"MaxSlippageBps"`
	FeeBps         uint64 `toml:"FeeBps"`
	TimeoutSeconds int64  `toml:"TimeoutSeconds"`
}

type Config struct {
	ListenAddress  string        `toml:"ListenAddress"`
	MetricsAddress string        `toml:"MetricsAddress"`
	DataDir        string        `toml:"DataDir"`
	LogFile        string        `toml:"LogFile"`
	VaultAddress   string        `toml:"VaultAddress"`
	Relays         []string      `toml:"Relays"`
	Admins         []string      `toml:"Admins"`
	Engine         EngineSection `toml:"Engine"`
}

const defaultConfig = `# swapsettled configuration

ListenAddress = "127.0.0.1:8645"
MetricsAddress = "127.0.0.1:9645"
DataDir = "./swapsettle-data"
LogFile = ""
# Address holding the engine escrow vault.
VaultAddress = "0x00000000000000000000000000000000000000fe"
# Addresses permitted to submit completion confirmations.
Relays = []
# Addresses permitted to reconfigure, pause and withdraw fees.
Admins = []

[Engine]
# 10 units minimum, 100000 units maximum (6 decimal places).
MinAmount = "10000000"
MaxAmount = "100000000000"
MaxSlippageBps = 300
FeeBps = 10
TimeoutSeconds = 1800
`

// Load loads the configuration from the given path, creating a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if _, err := toml.Decode(defaultConfig, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the daemon-level fields and the embedded engine parameters.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if _, err := parseAddress(c.VaultAddress); err != nil {
		return fmt.Errorf("config: VaultAddress: %w", err)
	}
	for _, relay := range c.Relays {
		if _, err := parseAddress(relay); err != nil {
			return fmt.Errorf("config: Relays entry %q: %w", relay, err)
		}
	}
	for _, admin := range c.Admins {
		if _, err := parseAddress(admin); err != nil {
			return fmt.Errorf("config: Admins entry %q: %w", admin, err)
		}
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	return nil
}

// EngineConfig converts the textual engine section into runtime parameters.
func (c *Config) EngineConfig() (*swap.Config, error) {
	minAmount, err := parseAmount(c.Engine.MinAmount)
	if err != nil {
		return nil, fmt.Errorf("config: Engine.MinAmount: %w", err)
	}
	maxAmount, err := parseAmount(c.Engine.MaxAmount)
	if err != nil {
		return nil, fmt.Errorf("config: Engine.MaxAmount: %w", err)
	}
	cfg := &swap.Config{
		MinAmount:      minAmount,
		MaxAmount:      maxAmount,
		MaxSlippageBps: c.Engine.MaxSlippageBps,
		FeeBps:         c.Engine.FeeBps,
		TimeoutSeconds: c.Engine.TimeoutSeconds,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Vault returns the parsed vault address.
func (c *Config) Vault() ([20]byte, error) {
	return parseAddress(c.VaultAddress)
}

// Authorizer builds the static role table from the configured address lists.
func (c *Config) Authorizer() (*swap.StaticAuthorizer, error) {
	relays := make([][20]byte, 0, len(c.Relays))
	for _, entry := range c.Relays {
		addr, err := parseAddress(entry)
		if err != nil {
			return nil, err
		}
		relays = append(relays, addr)
	}
	admins := make([][20]byte, 0, len(c.Admins))
	for _, entry := range c.Admins {
		addr, err := parseAddress(entry)
		if err != nil {
			return nil, err
		}
		admins = append(admins, addr)
	}
	return swap.NewStaticAuthorizer(relays, admins), nil
}

func parseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	return [20]byte(ethcommon.HexToAddress(trimmed)), nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
