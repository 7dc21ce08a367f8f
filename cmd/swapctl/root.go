package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vaultswap.backend/internal/config"
	"vaultswap.backend/internal/infrastructure/blockchain"
	"vaultswap.backend/internal/infrastructure/events"
	"vaultswap.backend/pkg/logger"
)

var (
	initLog = logger.Init
	openDB  = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{})
	}
	dialChain   = blockchain.NewEVMClient
	connectNATS = events.Connect
)

// cli carries the resolved configuration to subcommands
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	state := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "swapctl",
		Short: "Operator tooling for the VaultSwap backend",
		Long: `swapctl runs maintenance tasks against a VaultSwap deployment.

Settings come from the same environment as the server, and can be
overridden with VAULTSWAP_* variables or a .swapctl.yaml file.

Examples:
  swapctl migrate
  swapctl token --user 0190f3c2-7b1a-7000-8000-000000000001 --role admin
  swapctl reconcile
  swapctl quote --from USDC --to XAUT --amount 250`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(state.v, state.configFile)
			if err != nil {
				return err
			}
			state.cfg = cfg
			initLog(cfg.Server.Env)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&state.configFile, "config", "", "path to a YAML config file")

	root.AddCommand(
		newMigrateCmd(state),
		newTokenCmd(state),
		newReconcileCmd(state),
		newQuoteCmd(state),
	)
	return root
}

// loadConfig starts from the server's env config and applies VAULTSWAP_*
// variables and file values on top
func loadConfig(v *viper.Viper, file string) (*config.Config, error) {
	v.SetEnvPrefix("VAULTSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(".swapctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		_ = v.ReadInConfig()
	}

	cfg := config.Load()

	strs := map[string]*string{
		"server.env":          &cfg.Server.Env,
		"db.host":             &cfg.Database.Host,
		"db.user":             &cfg.Database.User,
		"db.password":         &cfg.Database.Password,
		"db.name":             &cfg.Database.DBName,
		"db.sslmode":          &cfg.Database.SSLMode,
		"jwt.secret":          &cfg.JWT.Secret,
		"evm.rpc_url":         &cfg.Blockchain.RPCURL,
		"trzry.pool_address":  &cfg.Blockchain.TreasuryPoolAddress,
		"trzry.token_address": &cfg.Blockchain.TreasuryTokenAddress,
		"price.feed_url":      &cfg.Providers.PriceFeedURL,
		"zerox.base_url":      &cfg.Providers.ZeroXBaseURL,
		"zerox.api_key":       &cfg.Providers.ZeroXAPIKey,
		"uniswapx.base_url":   &cfg.Providers.UniswapXBaseURL,
		"uniswapx.api_key":    &cfg.Providers.UniswapXAPIKey,
		"nats.url":            &cfg.NATS.URL,
		"nats.subject_prefix": &cfg.NATS.SubjectPrefix,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	ints := map[string]*int{
		"db.port":                    &cfg.Database.Port,
		"swap.fee_bps":               &cfg.Swap.FeeBps,
		"swap.slippage_bps":          &cfg.Swap.SlippageBps,
		"reconciliation.batch_size":  &cfg.Reconciliation.BatchSize,
		"reconciliation.max_retries": &cfg.Reconciliation.MaxRetries,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	if v.IsSet("jwt.expiry") {
		cfg.JWT.AccessExpiry = v.GetDuration("jwt.expiry")
	}
	if v.IsSet("evm.chain_id") {
		cfg.Blockchain.ChainID = v.GetInt64("evm.chain_id")
	}
	return cfg, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
