package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"olmkit/internal/store"
	"olmkit/pkg/olm"
)

func (c *cli) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Pairwise Olm sessions",
	}
	cmd.AddCommand(
		c.sessionOutboundCmd(),
		c.sessionInboundCmd(),
		c.sessionIDCmd(),
		c.sessionEncryptCmd(),
		c.sessionDecryptCmd(),
	)
	return cmd
}

func (c *cli) sessionOutboundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outbound <account> <session> <identity_key> <one_time_key>",
		Short: "Create an outbound session to a peer",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensureAbsent(cmd, store.KindSession, args[1]); err != nil {
				return err
			}
			a, err := c.loadAccount(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Free()

			s, err := olm.NewOutboundSession(a, args[2], args[3])
			if err != nil {
				return err
			}
			defer s.Free()
			return c.saveSession(cmd, args[1], s)
		},
	}
}

func (c *cli) sessionInboundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbound <account> <session> [message_file] [plaintext_file]",
		Short: "Create an inbound session from a pre-key message and decrypt it",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensureAbsent(cmd, store.KindSession, args[1]); err != nil {
				return err
			}
			msg, err := readMessage(cmd, optArg(args, 2))
			if err != nil {
				return err
			}
			if msg.Type != olm.MessageTypePreKey {
				return fmt.Errorf("expecting a PRE_KEY message")
			}

			a, err := c.loadAccount(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Free()

			s, err := olm.NewInboundSession(a, msg)
			if err != nil {
				return err
			}
			defer s.Free()

			pt, err := s.Decrypt(msg, olm.AsBytes)
			if err != nil {
				return err
			}
			if err := a.RemoveOneTimeKeys(s); err != nil {
				return err
			}
			if err := c.saveSession(cmd, args[1], s); err != nil {
				return err
			}
			if err := c.saveAccount(cmd, args[0], a); err != nil {
				return err
			}
			return writeOutput(cmd, optArg(args, 3), pt.Bytes())
		},
	}
}

func (c *cli) sessionIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id <session>",
		Short: "Print the session id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Free()

			id, err := s.ID()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func (c *cli) sessionEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <session> [plaintext_file] [message_file]",
		Short: "Encrypt a message",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Free()

			pt, err := readInput(cmd, optArg(args, 1))
			if err != nil {
				return err
			}
			msg, err := s.Encrypt(olm.Bytes(pt))
			if err != nil {
				return err
			}
			if err := c.saveSession(cmd, args[0], s); err != nil {
				return err
			}
			return writeMessage(cmd, optArg(args, 2), msg)
		},
	}
}

func (c *cli) sessionDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <session> [message_file] [plaintext_file]",
		Short: "Decrypt a message",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readMessage(cmd, optArg(args, 1))
			if err != nil {
				return err
			}
			s, err := c.loadSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.Free()

			pt, err := s.Decrypt(msg, olm.AsBytes)
			if err != nil {
				return err
			}
			if err := c.saveSession(cmd, args[0], s); err != nil {
				return err
			}
			return writeOutput(cmd, optArg(args, 2), pt.Bytes())
		},
	}
}
