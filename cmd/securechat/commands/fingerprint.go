package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "fingerprint",
		Short:       "Print the device key fingerprint",
		Annotations: keyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, fp, err := appCtx.Fingerprint(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
			return nil
		},
	}
}
