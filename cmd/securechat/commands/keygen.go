package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "keygen",
		Short:       "Create the device key pair and store it securely",
		Annotations: keyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, fp, err := appCtx.Fingerprint(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wire.Config.Passphrase == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: no passphrase, the key pair will not be saved")
			}
			b, _ := json.MarshalIndent(pub, "", "  ")
			fmt.Fprintf(out, "Public key:\n%s\nFingerprint: %s\n", b, fp)
			return nil
		},
	}
}
