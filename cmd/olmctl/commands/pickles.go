package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"olmkit/internal/store"
	"olmkit/pkg/olm"
)

func (c *cli) loadPickle(cmd *cobra.Command, kind store.Kind, name string) (string, error) {
	w, err := c.wired(cmd)
	if err != nil {
		return "", err
	}
	rec, err := w.Store.LoadPickle(cmd.Context(), kind, name)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("no %s named %q", kind, name)
	}
	if err != nil {
		return "", err
	}
	return rec.Pickle, nil
}

func (c *cli) savePickle(cmd *cobra.Command, kind store.Kind, name string, pickle func(key []byte) (string, error)) error {
	w, err := c.wired(cmd)
	if err != nil {
		return err
	}
	var p string
	if err := c.withKey(func(key []byte) error {
		p, err = pickle(key)
		return err
	}); err != nil {
		return fmt.Errorf("pickle %s: %w", kind, err)
	}
	if err := w.Store.SavePickle(cmd.Context(), kind, name, p); err != nil {
		return err
	}
	w.Log.Debug().Str("kind", string(kind)).Str("name", name).Msg("saved")
	return nil
}

// ensureAbsent refuses to overwrite an existing object.
func (c *cli) ensureAbsent(cmd *cobra.Command, kind store.Kind, name string) error {
	w, err := c.wired(cmd)
	if err != nil {
		return err
	}
	_, err = w.Store.LoadPickle(cmd.Context(), kind, name)
	switch {
	case err == nil:
		return fmt.Errorf("%s %q already exists", kind, name)
	case errors.Is(err, store.ErrNotFound):
		return nil
	}
	return err
}

func (c *cli) loadAccount(cmd *cobra.Command, name string) (*olm.Account, error) {
	p, err := c.loadPickle(cmd, store.KindAccount, name)
	if err != nil {
		return nil, err
	}
	var a *olm.Account
	err = c.withKey(func(key []byte) error {
		a, err = olm.UnpickleAccount(key, p)
		return err
	})
	return a, err
}

func (c *cli) saveAccount(cmd *cobra.Command, name string, a *olm.Account) error {
	return c.savePickle(cmd, store.KindAccount, name, a.Pickle)
}

func (c *cli) loadSession(cmd *cobra.Command, name string) (*olm.Session, error) {
	p, err := c.loadPickle(cmd, store.KindSession, name)
	if err != nil {
		return nil, err
	}
	var s *olm.Session
	err = c.withKey(func(key []byte) error {
		s, err = olm.UnpickleSession(key, p)
		return err
	})
	return s, err
}

func (c *cli) saveSession(cmd *cobra.Command, name string, s *olm.Session) error {
	return c.savePickle(cmd, store.KindSession, name, s.Pickle)
}

func (c *cli) loadOutboundGroup(cmd *cobra.Command, name string) (*olm.OutboundGroupSession, error) {
	p, err := c.loadPickle(cmd, store.KindOutboundGroup, name)
	if err != nil {
		return nil, err
	}
	var g *olm.OutboundGroupSession
	err = c.withKey(func(key []byte) error {
		g, err = olm.UnpickleOutboundGroupSession(key, p)
		return err
	})
	return g, err
}

func (c *cli) saveOutboundGroup(cmd *cobra.Command, name string, g *olm.OutboundGroupSession) error {
	return c.savePickle(cmd, store.KindOutboundGroup, name, g.Pickle)
}

func (c *cli) loadInboundGroup(cmd *cobra.Command, name string) (*olm.InboundGroupSession, error) {
	p, err := c.loadPickle(cmd, store.KindInboundGroup, name)
	if err != nil {
		return nil, err
	}
	var g *olm.InboundGroupSession
	err = c.withKey(func(key []byte) error {
		g, err = olm.UnpickleInboundGroupSession(key, p)
		return err
	})
	return g, err
}

func (c *cli) saveInboundGroup(cmd *cobra.Command, name string, g *olm.InboundGroupSession) error {
	return c.savePickle(cmd, store.KindInboundGroup, name, g.Pickle)
}
