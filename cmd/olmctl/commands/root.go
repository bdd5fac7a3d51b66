package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"olmkit/internal/app"
)

// cli holds the state shared by one command tree.
type cli struct {
	home      string
	storeName string
	logLevel  string
	keyFlag   string
	keyFile   string

	key  *memguard.Enclave
	wire *app.Wire
}

// Execute runs olmctl with os.Args.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "olmctl",
		Short:        "Olm and Megolm session tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadKey()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.wire == nil {
				return nil
			}
			return c.wire.Close()
		},
	}

	root.PersistentFlags().StringVar(&c.home, "home", "", "file store directory (default ~/.olmctl)")
	root.PersistentFlags().StringVar(&c.storeName, "store", "", "pickle store: file, redis or postgres")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.keyFlag, "key", "", "pickle encryption key")
	root.PersistentFlags().StringVar(&c.keyFile, "key-file", "", "read the pickle encryption key from a file")

	root.AddCommand(
		c.accountCmd(),
		c.sessionCmd(),
		c.groupCmd(),
		verifyCmd(),
		sha256Cmd(),
		versionCmd(),
	)
	return root
}

// loadKey moves the pickle key into an enclave.
func (c *cli) loadKey() error {
	var raw []byte
	switch {
	case c.keyFlag != "" && c.keyFile != "":
		return fmt.Errorf("use either --key or --key-file")
	case c.keyFile != "":
		b, err := os.ReadFile(c.keyFile)
		if err != nil {
			return fmt.Errorf("read key file: %w", err)
		}
		raw = []byte(strings.TrimRight(string(b), "\r\n"))
		memguard.WipeBytes(b)
	case c.keyFlag != "":
		raw = []byte(c.keyFlag)
	}
	if len(raw) > 0 {
		c.key = memguard.NewEnclave(raw)
	}
	return nil
}

// withKey opens the pickle key for the duration of fn.
func (c *cli) withKey(fn func(key []byte) error) error {
	if c.key == nil {
		return fn(nil)
	}
	b, err := c.key.Open()
	if err != nil {
		return fmt.Errorf("open pickle key: %w", err)
	}
	defer b.Destroy()
	return fn(b.Bytes())
}

// wired builds the store and logger on first use. Flags override the
// environment.
func (c *cli) wired(cmd *cobra.Command) (*app.Wire, error) {
	if c.wire != nil {
		return c.wire, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if c.home != "" {
		cfg.Home = c.home
	}
	if c.storeName != "" {
		cfg.Store = c.storeName
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	w, err := app.NewWire(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	c.wire = w
	return w, nil
}
