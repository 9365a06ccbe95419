package app

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/trufnetwork/attest/attestation"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	var (
		requester string
		txID      string
		limit     int
		offset    int
		orderBy   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Query the attestation registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := attestation.ListFilter{
				RequestTxID: txID,
				OrderBy:     orderBy,
			}
			if requester != "" {
				b, err := hexutil.Decode(requester)
				if err != nil {
					return fmt.Errorf("invalid requester: %w", err)
				}
				filter.Requester = b
			}
			if cmd.Flags().Changed("limit") {
				filter.Limit = &limit
			}
			if cmd.Flags().Changed("offset") {
				filter.Offset = &offset
			}

			ctx := cmd.Context()
			sess, err := flags.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			rows, err := sess.client.ListAttestations(ctx, filter)
			if err != nil {
				return err
			}

			out := lo.Map(rows, func(m attestation.AttestationMetadata, _ int) metadataOutput {
				return newMetadataOutput(m)
			})
			if flags.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			table, err := formatMetadataTable(out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), table)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&requester, "requester", "", "requester address (0x + 40 hex characters)")
	f.StringVar(&txID, "tx-id", "", "request transaction id")
	f.IntVar(&limit, "limit", attestation.DefaultListLimit, "maximum rows (1-5000)")
	f.IntVar(&offset, "offset", 0, "rows to skip")
	f.StringVar(&orderBy, "order-by", "", "created_height asc|desc or signed_height asc|desc")

	return cmd
}
