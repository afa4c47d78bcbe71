package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"spin-miniapp-backend/internal/models"
)

type Config struct {
	Env    string `env:"ENV" envDefault:"development"`
	Port   string `env:"PORT" envDefault:"8080"`
	AppURL string `env:"APP_URL" envDefault:""`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASS"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret  string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	Chains Chains
	Fees   Fees
}

// Chains holds the two networks the payment flow switches between.
type Chains struct {
	FeeChainID         hexutil.Uint64 `env:"FEE_CHAIN_ID" envDefault:"0x2105"`
	FeeChainName       string         `env:"FEE_CHAIN_NAME" envDefault:"Base"`
	FeeChainRPC        string         `env:"FEE_CHAIN_RPC" envDefault:"https://mainnet.base.org"`
	FeeChainExplorer   string         `env:"FEE_CHAIN_EXPLORER" envDefault:"https://basescan.org"`
	GameChainID        hexutil.Uint64 `env:"GAME_CHAIN_ID" envDefault:"0x29A"`
	GameChainName      string         `env:"GAME_CHAIN_NAME" envDefault:"Monad Testnet"`
	GameChainRPC       string         `env:"GAME_CHAIN_RPC" envDefault:"https://testnet-rpc.monad.xyz"`
	GameChainExplorer  string         `env:"GAME_CHAIN_EXPLORER" envDefault:"https://testnet-explorer.monad.xyz"`
	GameCurrencySymbol string         `env:"GAME_CURRENCY_SYMBOL" envDefault:"MON"`
	GameCurrencyName   string         `env:"GAME_CURRENCY_NAME" envDefault:"Monad"`
}

type Fees struct {
	TokenContract common.Address  `env:"FEE_TOKEN_ADDRESS" envDefault:"0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed"`
	TokenDecimals int32           `env:"FEE_TOKEN_DECIMALS" envDefault:"18"`
	Treasury      common.Address  `env:"TREASURY_ADDRESS" envDefault:"0xCC5552a28C2AA0AaE2B09826311900b466AebA65"`
	TokenFee      decimal.Decimal `env:"TOKEN_FEE" envDefault:"100"`
	NativeFee     decimal.Decimal `env:"NATIVE_FEE" envDefault:"0.001"`
	GasLimit      hexutil.Uint64  `env:"GAS_LIMIT" envDefault:"0x5208"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.Chains.FeeChainID == cfg.Chains.GameChainID {
		return nil, fmt.Errorf("fee chain and game chain must differ, both are %d", uint64(cfg.Chains.FeeChainID))
	}
	if !cfg.Fees.TokenFee.IsPositive() || !cfg.Fees.NativeFee.IsPositive() {
		return nil, fmt.Errorf("spin fees must be positive")
	}

	return &cfg, nil
}

func (c Chains) FeeChain() models.ChainConfig {
	return models.ChainConfig{
		ChainID:   c.FeeChainID,
		ChainName: c.FeeChainName,
		NativeCurrency: models.NativeCurrency{
			Name:     "Ethereum",
			Symbol:   "ETH",
			Decimals: 18,
		},
		RPCURLs:           []string{c.FeeChainRPC},
		BlockExplorerURLs: []string{c.FeeChainExplorer},
	}
}

func (c Chains) GameChain() models.ChainConfig {
	return models.ChainConfig{
		ChainID:   c.GameChainID,
		ChainName: c.GameChainName,
		NativeCurrency: models.NativeCurrency{
			Name:     c.GameCurrencyName,
			Symbol:   c.GameCurrencySymbol,
			Decimals: 18,
		},
		RPCURLs:           []string{c.GameChainRPC},
		BlockExplorerURLs: []string{c.GameChainExplorer},
	}
}

// Defaults returns the configuration with every default applied and no
// environment overrides. It panics if a default tag does not parse.
func Defaults() *Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic("config defaults: " + err.Error())
	}
	cfg.JWTSecret = "dev-secret-change-me"
	return &cfg
}
