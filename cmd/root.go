package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/301redirect/redirector/internal/config"
	"github.com/301redirect/redirector/internal/logging"
	"github.com/301redirect/redirector/internal/resolver"
	"github.com/301redirect/redirector/internal/services"
)

// Cfg is the configuration loaded before any subcommand runs.
var Cfg *config.Config

// Log is the process logger built from Cfg.Log.
var Log *zap.Logger

var configFile string

// RootCmd is the base command. Subcommands (serve, migrate, resolve) register
// themselves from their own packages in init().
var RootCmd = &cobra.Command{
	Use:   "redirector",
	Short: "Vanity domain redirect server",
	Long: `redirector answers requests for customer vanity domains. The CNAME of the
requested host names a subdomain of the apex domain, and that subdomain's record
holds the destination URL returned in a 301 redirect.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called from main.go.
func Execute() {
	defer func() {
		if Log != nil {
			_ = Log.Sync()
		}
	}()

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./configs/config.yaml)")
}

// initConfig loads the configuration and builds the logger. Both are required,
// so a failure here ends the process.
func initConfig() {
	var err error

	Cfg, err = config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	Log, err = logging.New(Cfg.Log.Level, Cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
}

// NewResolver builds the CNAME resolver described by Cfg: the DoH client,
// wrapped in the answer cache when it is enabled. The returned func logs the
// cache hit ratio and releases the cache.
func NewResolver() (resolver.CNAMEResolver, func(), error) {
	doh := resolver.NewDoHClient(Cfg.Resolver.Endpoint, Cfg.Resolver.Timeout, Log)
	if !Cfg.Resolver.Cache.Enabled {
		return doh, func() {}, nil
	}

	cached, err := resolver.NewCachedResolver(doh, resolver.CacheOptions{
		MaxEntries:  Cfg.Resolver.Cache.MaxEntries,
		MinTTL:      Cfg.Resolver.Cache.MinTTL,
		MaxTTL:      Cfg.Resolver.Cache.MaxTTL,
		NegativeTTL: Cfg.Resolver.Cache.NegativeTTL,
	}, Log)
	if err != nil {
		return nil, nil, err
	}
	closeCache := func() {
		Log.Info("closing resolver cache", zap.Float64("hit_ratio_percent", cached.HitRatio()))
		cached.Close()
	}
	return cached, closeCache, nil
}

// LookupOptions are the resolution options described by Cfg.
func LookupOptions() services.ResolutionOptions {
	opts := services.ResolutionOptions{ApexDomain: Cfg.Redirect.ApexDomain}
	if Cfg.Resolver.Mode == config.ModeFixed {
		opts.FixedDomain = Cfg.Resolver.FixedDomain
	}
	return opts
}
