package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trufnetwork/attest/attestation"
	"github.com/trufnetwork/attest/internal/config"
)

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	var (
		file       string
		validators []string
	)

	cmd := &cobra.Command{
		Use:   "verify [payload]",
		Short: "Verify a signed attestation payload offline",
		Long: `Decode a signed attestation payload (base64 or 0x hex), recover the signing
validator and check it against the allowed validators given with --validator
or TN_VALIDATORS. No node connection is made.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			switch {
			case file != "":
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				input = string(b)
			case len(args) == 1:
				input = args[0]
			default:
				return fmt.Errorf("a payload argument or --file is required")
			}

			raw, err := decodePayloadInput(input)
			if err != nil {
				return err
			}

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			allowed, err := config.ParseAddresses(append(cfg.Validators, validators...))
			if err != nil {
				return err
			}

			att, err := attestation.NewSignedAttestation("", raw)
			if err != nil {
				return err
			}

			signer, err := att.Signer()
			if err != nil {
				return err
			}
			_, verifyErr := att.VerifySigner(allowed...)

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
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "read the payload from a file")
	cmd.Flags().StringSliceVar(&validators, "validator", nil, "allowed validator address (repeatable)")

	return cmd
}
