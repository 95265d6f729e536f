package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sebasr/bpmetrics/internal/auth"
	"github.com/sebasr/bpmetrics/internal/config"
)

func (a *app) newPairingCommand() *cobra.Command {
	pairingCmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage watch pairing",
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a pairing token for a watch",
		Long: `Issue a pairing token for a watch.

The token is signed with the pairing secret (BPM_PAIRING_SECRET, falling back
to PAIRING_SECRET or PAIRING_SECRET_FILE) and goes into the watch's PAIRING_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deviceID, _ := cmd.Flags().GetString("device")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			secret := a.v.GetString("pairing-secret")
			if secret == "" {
				secret = config.GetSecret("PAIRING_SECRET", "")
			}
			if secret == "" {
				return errors.New("pairing secret is not configured")
			}

			token, expiresAt, err := auth.NewPairingService(secret, ttl).Issue(deviceID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, token); err != nil {
				return err
			}
			if expiresAt.IsZero() {
				_, err = fmt.Fprintln(cmd.ErrOrStderr(), "Token does not expire")
			} else {
				_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Token expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			}
			return err
		},
	}
	tokenCmd.Flags().String("device", "", "Device ID the token is bound to")
	tokenCmd.Flags().Duration("ttl", 8760*time.Hour, "Token lifetime (0 = never expires)")
	_ = tokenCmd.MarkFlagRequired("device")
	tokenCmd.Flags().String("pairing-secret", "", "HMAC secret tokens are signed with")
	_ = a.v.BindPFlag("pairing-secret", tokenCmd.Flags().Lookup("pairing-secret"))

	pairingCmd.AddCommand(tokenCmd)
	return pairingCmd
}
