package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trufnetwork/attest/attestation"
)

func newRequestCmd(flags *rootFlags) *cobra.Command {
	var (
		req     attestation.AttestationRequest
		argsRaw string
		wait    bool
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Submit an attestation request",
		Example: `  tn-attest request \
    --data-provider 0x4710a8d8f0d845da110086812a32de6d90d7ff5c \
    --stream-id st00000000000000000000000000test \
    --action get_record \
    --args '["0x4710a8d8f0d845da110086812a32de6d90d7ff5c","st00000000000000000000000000test",1700000000,1700086400,null,false]' \
    --max-fee 40000000000000000000 --wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := parseArgsJSON(argsRaw)
			if err != nil {
				return err
			}
			req.Args = args

			// validate before dialing
			if _, err := attestation.BuildRequest(req); err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := flags.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			receipt, err := sess.client.RequestAttestation(ctx, req)
			if err != nil {
				return err
			}
			if !wait {
				if flags.json {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"request_tx_id": receipt.TxID})
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), receipt.TxID)
				return err
			}

			if _, err := sess.client.WaitForRequest(ctx, receipt.TxID); err != nil {
				return err
			}
			att, err := sess.client.WaitForSignature(ctx, receipt.TxID)
			if err != nil {
				return err
			}
			return printAttestation(cmd, flags, sess, att)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.DataProvider, "data-provider", "", "stream owner address (0x + 40 hex characters)")
	f.StringVar(&req.StreamID, "stream-id", "", "32-character stream id")
	f.StringVar(&req.ActionName, "action", "", "read-only action to attest")
	f.StringVar(&argsRaw, "args", "[]", "action arguments as a JSON array")
	f.StringVar(&req.MaxFee, "max-fee", "", "maximum fee in wei")
	f.BoolVar(&wait, "wait", false, "wait for inclusion and signature, then print the attestation")
	_ = cmd.MarkFlagRequired("data-provider")
	_ = cmd.MarkFlagRequired("stream-id")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("max-fee")

	return cmd
}

// printAttestation verifies att against the configured validators and prints it.
func printAttestation(cmd *cobra.Command, flags *rootFlags, sess *session, att *attestation.SignedAttestation) error {
	allowed, err := sess.cfg.ValidatorAddresses()
	if err != nil {
		return err
	}

	signer, verifyErr := sess.client.Verify(cmd.Context(), att, allowed...)
	out := newAttestationOutput(att, signer, verifyErr == nil && len(allowed) > 0)

	if flags.json {
		err = writeJSON(cmd.OutOrStdout(), out)
	} else {
		err = out.writeText(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}
	return verifyErr
}
