package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trufnetwork/attest/attestation"
)

func newWaitCmd(flags *rootFlags) *cobra.Command {
	var (
		interval time.Duration
		attempts int
	)

	cmd := &cobra.Command{
		Use:   "wait <request-tx-id>...",
		Short: "Poll until attestations are signed",
		Long: `Poll get_signed_attestation until the leader signs the request. With one tx
id the signed attestation is printed; with several the ids are polled
concurrently and their states are printed. Running out of attempts is not
fatal: the request stays valid and can be waited on again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, txIDs []string) error {
			var pollOpts []attestation.PollerOption
			if cmd.Flags().Changed("interval") || cmd.Flags().Changed("attempts") {
				pollOpts = append(pollOpts, attestation.WithPollConfig(attestation.PollConfig{
					Interval:    interval,
					MaxAttempts: attempts,
				}))
			}

			ctx := cmd.Context()
			sess, err := flags.openSession(ctx, pollOpts...)
			if err != nil {
				return err
			}
			defer sess.Close()

			if len(txIDs) == 1 {
				att, err := sess.client.WaitForSignature(ctx, txIDs[0])
				if err != nil {
					return err
				}
				return printAttestation(cmd, flags, sess, att)
			}

			results, err := sess.client.WaitForSignatures(ctx, txIDs)
			if err != nil {
				return err
			}

			type state struct {
				RequestTxID string `json:"request_tx_id"`
				State       string `json:"state"`
				Attempts    int    `json:"attempts"`
			}
			states := make([]state, 0, len(txIDs))
			for _, txID := range txIDs {
				res, ok := results[attestation.NormalizeTxID(txID)]
				if !ok {
					continue
				}
				states = append(states, state{RequestTxID: res.TxID, State: res.State.String(), Attempts: res.Attempts})
			}

			if flags.json {
				return writeJSON(cmd.OutOrStdout(), states)
			}
			for _, s := range states {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(%d attempts)\n", s.RequestTxID, s.State, s.Attempts)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", attestation.DefaultPollInterval, "delay between polls")
	cmd.Flags().IntVar(&attempts, "attempts", attestation.DefaultPollMaxAttempts, "maximum number of polls")

	return cmd
}

func newGetCmd(flags *rootFlags) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "get <request-tx-id>",
		Short: "Fetch a signed attestation once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := flags.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var opts []attestation.GetOption
			if noCache {
				opts = append(opts, attestation.SkipCache())
			}

			att, err := sess.client.GetSignedAttestation(ctx, args[0], opts...)
			if err != nil {
				return err
			}
			return printAttestation(cmd, flags, sess, att)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore the local payload cache")

	return cmd
}
