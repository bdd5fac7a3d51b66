package commands

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"olmkit/internal/store"
	"olmkit/pkg/olm"
)

func (c *cli) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(
		c.accountCreateCmd(),
		c.accountKeysCmd(),
		c.accountIdentityKeyCmd(),
		c.accountSigningKeyCmd(),
		c.accountOneTimeKeyCmd(),
		c.accountSignCmd(),
		c.accountGenerateKeysCmd(),
		c.accountPublishCmd(),
	)
	return cmd
}

func (c *cli) accountCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <account>",
		Short: "Create a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ensureAbsent(cmd, store.KindAccount, args[0]); err != nil {
				return err
			}
			a, err := olm.NewAccount()
			if err != nil {
				return err
			}
			defer a.Free()
			return c.saveAccount(cmd, args[0], a)
		},
	}
}

type accountKeys struct {
	AccountKeys olm.IdentityKeys `json:"account_keys"`
	OneTimeKeys olm.OneTimeKeys  `json:"one_time_keys"`
}

func (c *cli) accountKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <account>",
		Short: "List public keys for an account as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadAccount(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Free()

			var out accountKeys
			if out.AccountKeys, err = a.IdentityKeys(); err != nil {
				return err
			}
			if out.OneTimeKeys, err = a.OneTimeKeys(); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "    ")
			return enc.Encode(out)
		},
	}
}

func (c *cli) accountIdentityKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity-key <account>",
		Short: "Print the public part of the identity key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := c.identityKeys(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), keys.Curve25519)
			return nil
		},
	}
}

func (c *cli) accountSigningKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signing-key <account>",
		Short: "Print the public part of the signing key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := c.identityKeys(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), keys.Ed25519)
			return nil
		},
	}
}

func (c *cli) identityKeys(cmd *cobra.Command, name string) (olm.IdentityKeys, error) {
	a, err := c.loadAccount(cmd, name)
	if err != nil {
		return olm.IdentityKeys{}, err
	}
	defer a.Free()
	return a.IdentityKeys()
}

func (c *cli) accountOneTimeKeyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "one-time-key <account>",
		Short: "Print an unpublished one-time key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadAccount(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Free()

			otks, err := a.OneTimeKeys()
			if err != nil {
				return err
			}
			keys := orderedKeys(otks.Curve25519)
			if n < 1 || n > len(keys) {
				return fmt.Errorf("invalid key number %d: %d keys available", n, len(keys))
			}
			fmt.Fprintln(cmd.OutOrStdout(), keys[n-1])
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "key-num", "n", 1, "index of the key to print, oldest first")
	return cmd
}

// orderedKeys returns the keys sorted by numeric key id.
func orderedKeys(m map[string]string) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	num := func(id string) uint32 {
		b, err := base64.RawStdEncoding.DecodeString(id)
		if err != nil || len(b) != 4 {
			return 0
		}
		return binary.BigEndian.Uint32(b)
	}
	sort.Slice(ids, func(i, j int) bool { return num(ids[i]) < num(ids[j]) })

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = m[id]
	}
	return keys
}

func (c *cli) accountSignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign <account> [message_file] [signature_file]",
		Short: "Sign a message with the account's signing key",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadAccount(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Free()

			msg, err := readInput(cmd, optArg(args, 1))
			if err != nil {
				return err
			}
			sig, err := a.Sign(olm.Bytes(msg))
			if err != nil {
				return err
			}
			return writeOutput(cmd, optArg(args, 2), []byte(sig))
		},
	}
}

func (c *cli) accountGenerateKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-keys <account> <count>",
		Short: "Generate one-time keys",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[1])
			if err != nil || count < 0 {
				return fmt.Errorf("invalid count %q", args[1])
			}
			a, err := c.loadAccount(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Free()

			if err := a.GenerateOneTimeKeys(count); err != nil {
				return err
			}
			return c.saveAccount(cmd, args[0], a)
		},
	}
}

func (c *cli) accountPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <account>",
		Short: "Mark the current one-time keys as published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadAccount(cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Free()

			if err := a.MarkKeysAsPublished(); err != nil {
				return err
			}
			return c.saveAccount(cmd, args[0], a)
		},
	}
}
