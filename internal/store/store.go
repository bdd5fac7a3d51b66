package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Kind names the object family a pickle belongs to.
type Kind string

const (
	KindAccount       Kind = "account"
	KindSession       Kind = "session"
	KindOutboundGroup Kind = "outbound_group"
	KindInboundGroup  Kind = "inbound_group"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAccount, KindSession, KindOutboundGroup, KindInboundGroup:
		return true
	}
	return false
}

var ErrNotFound = errors.New("pickle not found")

// Record is one stored pickle.
type Record struct {
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Pickle    string    `json:"pickle"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PickleStore saves and loads pickles.
type PickleStore interface {
	SavePickle(ctx context.Context, kind Kind, name, pickle string) error
	LoadPickle(ctx context.Context, kind Kind, name string) (Record, error)
	DeletePickle(ctx context.Context, kind Kind, name string) error
	ListPickles(ctx context.Context, kind Kind) ([]string, error)
	Close() error
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9._@:+/=-]{1,128}$`)

func validate(kind Kind, name string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown pickle kind %q", kind)
	}
	if name != "" && !nameRE.MatchString(name) {
		return fmt.Errorf("invalid pickle name %q", name)
	}
	return nil
}
