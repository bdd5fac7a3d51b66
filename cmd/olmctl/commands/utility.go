package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"olmkit/pkg/olm"
)

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <signing_key> <signature> [message_file]",
		Short: "Verify an ed25519 signature",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readInput(cmd, optArg(args, 2))
			if err != nil {
				return err
			}
			if err := olm.ED25519Verify(args[0], olm.Bytes(msg), args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func sha256Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sha256 [file]",
		Short: "Print the unpadded base64 SHA-256 of a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, optArg(args, 0))
			if err != nil {
				return err
			}
			sum, err := olm.SHA256(olm.Bytes(b))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the library version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			major, minor, patch := olm.LibraryVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "%d.%d.%d\n", major, minor, patch)
			return nil
		},
	}
}
