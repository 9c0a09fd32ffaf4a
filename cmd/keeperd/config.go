package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	keeper "github.com/keeperd/keeper"
	"github.com/keeperd/keeper/errors"
	"github.com/keeperd/keeper/x/escrow"
)

// Config is the daemon configuration, loaded from a YAML file with
// environment overrides for the secrets.
type Config struct {
	// Listen is the address the HTTP API binds to.
	Listen string `yaml:"listen"`

	// Admin is the hex address holding arbitration and fee authority.
	Admin string `yaml:"admin"`

	// FeePercent is the initial arbitration fee percentage (0-100).
	FeePercent uint32 `yaml:"fee_percent"`

	// CancelPolicy selects who may cancel a pending escrow. Either
	// "seller" (the default) or "either".
	CancelPolicy string `yaml:"cancel_policy"`

	// HMACSecret signs API requests. Empty disables verification and
	// trusts the caller header, for development only. Overridden by
	// KEEPERD_HMAC_SECRET.
	HMACSecret string `yaml:"hmac_secret"`

	// HMACMaxSkew bounds how old a signed request may be.
	HMACMaxSkew time.Duration `yaml:"hmac_max_skew"`

	// PostgresDSN, when set, enables the durable event journal.
	// Overridden by KEEPERD_POSTGRES_DSN.
	PostgresDSN string `yaml:"postgres_dsn"`

	Rail RailConfig `yaml:"rail"`
}

// RailConfig selects and configures the fund movement backend.
type RailConfig struct {
	// Mode is "memory" (the default) or "erc20".
	Mode string `yaml:"mode"`

	// RPCURL of the node, erc20 mode only.
	RPCURL string `yaml:"rpc_url"`

	// Token is the hex address of the ERC-20 contract, erc20 mode only.
	Token string `yaml:"token"`

	// PrivateKey of the operator account submitting transfers, erc20
	// mode only. Overridden by KEEPERD_OPERATOR_KEY.
	PrivateKey string `yaml:"private_key"`
}

// LoadConfig reads the configuration file, applies defaults and
// environment overrides and validates the result. An empty path loads
// defaults only.
func LoadConfig(path string) (*Config, error) {
	conf := Config{
		Listen:      ":8000",
		HMACMaxSkew: 5 * time.Minute,
		Rail:        RailConfig{Mode: "memory"},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, &conf); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}

	if v := os.Getenv("KEEPERD_HMAC_SECRET"); v != "" {
		conf.HMACSecret = v
	}
	if v := os.Getenv("KEEPERD_POSTGRES_DSN"); v != "" {
		conf.PostgresDSN = v
	}
	if v := os.Getenv("KEEPERD_OPERATOR_KEY"); v != "" {
		conf.Rail.PrivateKey = v
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return errors.Wrap(errors.ErrInput, "listen address is required")
	}
	if _, err := c.AdminAddress(); err != nil {
		return err
	}
	if c.FeePercent > escrow.MaxFeePercent {
		return errors.Wrapf(errors.ErrFee, "fee_percent %d outside 0-%d", c.FeePercent, escrow.MaxFeePercent)
	}
	if _, err := c.cancelPolicy(); err != nil {
		return err
	}
	switch c.Rail.Mode {
	case "memory":
	case "erc20":
		if c.Rail.RPCURL == "" || c.Rail.Token == "" || c.Rail.PrivateKey == "" {
			return errors.Wrap(errors.ErrInput, "erc20 rail requires rpc_url, token and private_key")
		}
	default:
		return errors.Wrapf(errors.ErrInput, "unknown rail mode %q", c.Rail.Mode)
	}
	return nil
}

// AdminAddress parses the configured admin account.
func (c *Config) AdminAddress() (keeper.Address, error) {
	addr, err := keeper.ParseAddress(c.Admin)
	if err != nil {
		return nil, errors.Wrap(err, "admin address")
	}
	return addr, nil
}

func (c *Config) cancelPolicy() (escrow.CancelPolicy, error) {
	switch c.CancelPolicy {
	case "", "seller":
		return escrow.SellerCancelPolicy, nil
	case "either":
		return escrow.BuyerOrSellerCancelPolicy, nil
	}
	return nil, errors.Wrapf(errors.ErrInput, "unknown cancel policy %q", c.CancelPolicy)
}
