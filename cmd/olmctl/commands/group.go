package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"olmkit/internal/store"
	"olmkit/pkg/olm"
)

func (c *cli) groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Megolm group sessions",
	}
	cmd.AddCommand(
		c.groupOutboundCmd(),
		c.groupCredentialsCmd(),
		c.groupEncryptCmd(),
		c.groupInboundCmd(),
		c.groupImportCmd(),
		c.groupDecryptCmd(),
		c.groupExportCmd(),
	)
	return cmd
}

type credentials struct {
	MessageIndex uint32 `json:"message_index"`
	SessionKey   string `json:"session_key"`
}

func (c *cli) groupOutboundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outbound <session>",
		Short: "Create an outbound group session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensureAbsent(cmd, store.KindOutboundGroup, args[0]); err != nil {
				return err
			}
			g, err := olm.NewOutboundGroupSession()
			if err != nil {
				return err
			}
			defer g.Free()
			return c.saveOutboundGroup(cmd, args[0], g)
		},
	}
}

func (c *cli) groupCredentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credentials <session> [credentials_file]",
		Short: "Export the current outbound group session credentials",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := c.loadOutboundGroup(cmd, args[0])
			if err != nil {
				return err
			}
			defer g.Free()

			var cr credentials
			if cr.MessageIndex, err = g.MessageIndex(); err != nil {
				return err
			}
			if cr.SessionKey, err = g.SessionKey(); err != nil {
				return err
			}
			b, err := json.MarshalIndent(cr, "", "    ")
			if err != nil {
				return err
			}
			return writeOutput(cmd, optArg(args, 1), append(b, '\n'))
		},
	}
}

func (c *cli) groupEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <session> [plaintext_file] [message_file]",
		Short: "Encrypt a group message",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := c.loadOutboundGroup(cmd, args[0])
			if err != nil {
				return err
			}
			defer g.Free()

			pt, err := readInput(cmd, optArg(args, 1))
			if err != nil {
				return err
			}
			msg, err := g.Encrypt(olm.Bytes(pt))
			if err != nil {
				return err
			}
			if err := c.saveOutboundGroup(cmd, args[0], g); err != nil {
				return err
			}
			return writeOutput(cmd, optArg(args, 2), []byte(msg))
		},
	}
}

func (c *cli) groupInboundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbound <session> [credentials_file]",
		Short: "Create an inbound group session from outbound credentials",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensureAbsent(cmd, store.KindInboundGroup, args[0]); err != nil {
				return err
			}
			b, err := readInput(cmd, optArg(args, 1))
			if err != nil {
				return err
			}
			var cr credentials
			if err := json.Unmarshal(b, &cr); err != nil {
				return fmt.Errorf("decode credentials: %w", err)
			}
			if cr.SessionKey == "" {
				return fmt.Errorf("credentials file is missing session_key")
			}

			g, err := olm.NewInboundGroupSession(cr.SessionKey)
			if err != nil {
				return err
			}
			defer g.Free()
			return c.saveInboundGroup(cmd, args[0], g)
		},
	}
}

func (c *cli) groupImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <session> [export_file]",
		Short: "Create an inbound group session from an export",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensureAbsent(cmd, store.KindInboundGroup, args[0]); err != nil {
				return err
			}
			exported, err := readBase64(cmd, optArg(args, 1))
			if err != nil {
				return err
			}
			g, err := olm.ImportInboundGroupSession(exported)
			if err != nil {
				return err
			}
			defer g.Free()
			return c.saveInboundGroup(cmd, args[0], g)
		},
	}
}

func (c *cli) groupDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <session> [message_file] [plaintext_file]",
		Short: "Decrypt a group message",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := c.loadInboundGroup(cmd, args[0])
			if err != nil {
				return err
			}
			defer g.Free()

			msg, err := readBase64(cmd, optArg(args, 1))
			if err != nil {
				return err
			}
			pt, err := g.Decrypt(msg, olm.AsBytes)
			if err != nil {
				return err
			}
			if err := c.saveInboundGroup(cmd, args[0], g); err != nil {
				return err
			}
			c.wire.Log.Debug().Uint32("message_index", pt.MessageIndex).Msg("group message decrypted")
			return writeOutput(cmd, optArg(args, 2), pt.Plaintext.Bytes())
		},
	}
}

func (c *cli) groupExportCmd() *cobra.Command {
	var index int64
	cmd := &cobra.Command{
		Use:   "export <session> [export_file]",
		Short: "Export the keys of an inbound group session",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := c.loadInboundGroup(cmd, args[0])
			if err != nil {
				return err
			}
			defer g.Free()

			at := uint32(index)
			if index < 0 {
				if at, err = g.FirstKnownIndex(); err != nil {
					return err
				}
			} else if index > int64(^uint32(0)) {
				return fmt.Errorf("message index %d out of range", index)
			}
			exported, err := g.Export(at)
			if err != nil {
				return err
			}
			return writeOutput(cmd, optArg(args, 1), []byte(exported))
		},
	}
	cmd.Flags().Int64Var(&index, "message-index", -1, "index to export at (default: first known index)")
	return cmd
}
