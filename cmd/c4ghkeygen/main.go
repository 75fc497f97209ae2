// Command c4ghkeygen provisions X25519 key pairs for the Envelope Custodian
// and for test clients.
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ghgadelivery/internal/crypt4gh"
)

var generateKeys = crypt4gh.GenerateKeys

func newRootCmd() *cobra.Command {
	var fromPrivate string

	cmd := &cobra.Command{
		Use:   "c4ghkeygen",
		Short: "Generate base64 encoded X25519 keys for envelope encryption",
		Long: `c4ghkeygen prints a fresh X25519 key pair as standard base64.

The private key goes into the custodian's server_private_key setting; the
public key is what submitters encrypt their envelopes for.

With --from-private the public key is derived from an existing private key
instead of generating a new pair.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromPrivate != "" {
				kp, err := crypt4gh.NewKeyPairFromBase64(fromPrivate)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\n", base64.StdEncoding.EncodeToString(kp.PublicKey()))
				return nil
			}

			private, public, err := generateKeys()
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "private: %s\n", base64.StdEncoding.EncodeToString(private))
			fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\n", base64.StdEncoding.EncodeToString(public))
			return nil
		},
	}

	cmd.Flags().StringVarP(&fromPrivate, "from-private", "p", "", "derive the public key from this base64 private key")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
