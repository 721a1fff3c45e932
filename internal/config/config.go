package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	Port    int
	LogJSON bool

	RPCEndpoint  string
	SellerKey    solana.PublicKey
	NativeSymbol string
	TokenSymbol  string
	TokenMint    solana.PublicKey

	CatalogPath string
	IPFSGateway string

	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration
	IntentExpiry      time.Duration

	DB    DBConfig
	Redis RedisConfig
	Kafka KafkaConfig
}

type DBConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
}

// Enabled is false when no host is configured; the server then keeps the
// ledger in memory.
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Schema,
	)
}

type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Devnet addresses of the original deployment.
const (
	defaultSeller = "CmJUL5ckTurxuMPkTZhD4FqBtKHhKQQmG9uHv3xDSMyH"
	defaultMint   = "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr"
)

func Default() Config {
	return Config{
		Env:               "dev",
		Port:              3000,
		LogJSON:           false,
		RPCEndpoint:       rpc.DevNet_RPC,
		SellerKey:         solana.MustPublicKeyFromBase58(defaultSeller),
		NativeSymbol:      "SOL",
		TokenSymbol:       "USDC",
		TokenMint:         solana.MustPublicKeyFromBase58(defaultMint),
		CatalogPath:       "",
		IPFSGateway:       "https://gateway.ipfscdn.io",
		ConfirmTimeout:    90 * time.Second,
		PollInterval:      2 * time.Second,
		ReconcileInterval: 30 * time.Second,
		ReconcileAfter:    time.Minute,
		IntentExpiry:      5 * time.Minute,
		DB: DBConfig{
			Port:   "5432",
			Schema: "public",
		},
		Redis: RedisConfig{TTL: 24 * time.Hour},
		Kafka: KafkaConfig{Topic: "orders-recorded"},
	}
}

// Load reads .env files (existing variables win) and layers SOLPAY_* and
// BLUEPRINT_DB_* variables over the defaults.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	return FromEnv(Default())
}

func FromEnv(c Config) (Config, error) {
	if v := os.Getenv("SOLPAY_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("SOLPAY_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("SOLPAY_PORT: %w", err)
		}
		c.Port = p
	}
	if v := os.Getenv("SOLPAY_LOG_JSON"); v != "" {
		switch v {
		case "1", "true", "TRUE":
			c.LogJSON = true
		case "0", "false", "FALSE":
			c.LogJSON = false
		}
	}
	if v := os.Getenv("SOLPAY_RPC_URL"); v != "" {
		c.RPCEndpoint = v
	}
	if v := os.Getenv("SOLPAY_SELLER"); v != "" {
		pk, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return c, fmt.Errorf("SOLPAY_SELLER: %w", err)
		}
		c.SellerKey = pk
	}
	if v := os.Getenv("SOLPAY_TOKEN_MINT"); v != "" {
		pk, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return c, fmt.Errorf("SOLPAY_TOKEN_MINT: %w", err)
		}
		c.TokenMint = pk
	}
	if v := os.Getenv("SOLPAY_TOKEN_SYMBOL"); v != "" {
		c.TokenSymbol = v
	}
	if v := os.Getenv("SOLPAY_NATIVE_SYMBOL"); v != "" {
		c.NativeSymbol = v
	}
	if v := os.Getenv("SOLPAY_CATALOG"); v != "" {
		c.CatalogPath = v
	}
	if v := os.Getenv("SOLPAY_IPFS_GATEWAY"); v != "" {
		c.IPFSGateway = strings.TrimRight(v, "/")
	}
	durations := map[string]*time.Duration{
		"SOLPAY_CONFIRM_TIMEOUT":    &c.ConfirmTimeout,
		"SOLPAY_POLL_INTERVAL":      &c.PollInterval,
		"SOLPAY_RECONCILE_INTERVAL": &c.ReconcileInterval,
		"SOLPAY_RECONCILE_AFTER":    &c.ReconcileAfter,
		"SOLPAY_INTENT_EXPIRY":      &c.IntentExpiry,
		"SOLPAY_REDIS_TTL":          &c.Redis.TTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return c, fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("BLUEPRINT_DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("BLUEPRINT_DB_PORT"); v != "" {
		c.DB.Port = v
	}
	if v := os.Getenv("BLUEPRINT_DB_DATABASE"); v != "" {
		c.DB.Database = v
	}
	if v := os.Getenv("BLUEPRINT_DB_USERNAME"); v != "" {
		c.DB.Username = v
	}
	if v := os.Getenv("BLUEPRINT_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("BLUEPRINT_DB_SCHEMA"); v != "" {
		c.DB.Schema = v
	}

	if v := os.Getenv("SOLPAY_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SOLPAY_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SOLPAY_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.SellerKey.IsZero() {
		return errors.New("seller address is required")
	}
	if c.TokenMint.IsZero() {
		return errors.New("token mint address is required")
	}
	if c.NativeSymbol == "" || c.TokenSymbol == "" {
		return errors.New("currency symbols are required")
	}
	if c.NativeSymbol == c.TokenSymbol {
		return fmt.Errorf("native and token symbols collide: %s", c.NativeSymbol)
	}
	if c.PollInterval <= 0 || c.ConfirmTimeout <= 0 {
		return errors.New("confirmation timeout and poll interval must be positive")
	}
	return nil
}
