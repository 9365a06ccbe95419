package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trufnetwork/kwil-db/core/log"

	"github.com/trufnetwork/attest/attestation"
	"github.com/trufnetwork/attest/attestation/metrics"
	tnVersion "github.com/trufnetwork/attest/cmd/version"
	"github.com/trufnetwork/attest/internal/config"
	"github.com/trufnetwork/attest/internal/kwilclient"
	"github.com/trufnetwork/attest/internal/store"
)

// rootFlags are shared by every subcommand. Empty values leave the
// environment configuration untouched.
type rootFlags struct {
	envFile   string
	endpoint  string
	chainID   string
	namespace string
	cacheDir  string
	logLevel  string
	json      bool
}

// RootCmd builds the tn-attest command tree.
func RootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "tn-attest",
		Short: "Request, retrieve and verify TN validator attestations",
		Long: `tn-attest asks TN validators to attest to the result of a read-only query,
waits for the leader to sign it and verifies the signed payload offline.

Settings are read from TN_* environment variables (and a .env file); flags
override them. The signing key is only read from TN_PRIVATE_KEY.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", "", "load environment variables from this file")
	pf.StringVar(&flags.endpoint, "endpoint", "", "node RPC endpoint (TN_ENDPOINT)")
	pf.StringVar(&flags.chainID, "chain-id", "", "expected chain id (TN_CHAIN_ID)")
	pf.StringVar(&flags.namespace, "namespace", "", "namespace holding the attestation actions (TN_NAMESPACE)")
	pf.StringVar(&flags.cacheDir, "cache-dir", "", "directory for the signed payload cache (TN_CACHE_DIR)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error (TN_LOG_LEVEL)")
	pf.BoolVar(&flags.json, "json", false, "print JSON instead of text")

	cmd.AddCommand(
		newRequestCmd(flags),
		newWaitCmd(flags),
		newGetCmd(flags),
		newVerifyCmd(flags),
		newListCmd(flags),
		tnVersion.NewVersionCmd(),
	)

	return cmd
}

// loadConfig reads the environment and applies flag overrides.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}

	overrides := map[*string]string{
		&cfg.Endpoint:  f.endpoint,
		&cfg.ChainID:   f.chainID,
		&cfg.Namespace: f.namespace,
		&cfg.CacheDir:  f.cacheDir,
		&cfg.LogLevel:  f.logLevel,
	}
	for field, v := range overrides {
		if v != "" {
			*field = v
		}
	}
	return cfg, cfg.Validate()
}

// session bundles a connected attestation client with its resources.
type session struct {
	cfg    *config.Config
	client *attestation.Client
	store  *store.PayloadStore
	logger log.Logger
}

func (f *rootFlags) openSession(ctx context.Context, pollOpts ...attestation.PollerOption) (*session, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	tx, err := kwilclient.Dial(ctx, cfg.Endpoint, kwilclient.Options{
		PrivateKey: cfg.PrivateKey,
		ChainID:    cfg.ChainID,
		Namespace:  cfg.Namespace,
		Logger:     logger.New("kwil"),
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}
	opts := []attestation.Option{
		attestation.WithLogger(logger.New("attestation")),
		attestation.WithMetrics(metrics.NewRecorder(logger)),
		attestation.WithFinalityTimeout(cfg.FinalityTimeout),
		attestation.WithPollerOptions(append([]attestation.PollerOption{
			attestation.WithPollConfig(attestation.PollConfig{
				Interval:    cfg.PollInterval,
				MaxAttempts: cfg.PollMaxAttempts,
			}),
		}, pollOpts...)...),
	}

	if cfg.CacheDir != "" {
		s.store, err = store.Open(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, attestation.WithPayloadStore(s.store))
	}

	s.client, err = attestation.NewClient(tx, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close payload store", "error", err)
	}
}

func newLogger(level string) (log.Logger, error) {
	var lvl log.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = log.LevelDebug
	case "", "info":
		lvl = log.LevelInfo
	case "warn", "warning":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return log.New(log.WithLevel(lvl), log.WithWriter(os.Stderr)), nil
}
