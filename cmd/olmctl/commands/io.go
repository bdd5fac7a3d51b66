package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"olmkit/pkg/olm"
)

const (
	preKeyPrefix  = "PRE_KEY "
	messagePrefix = "MESSAGE "
)

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// writeOutput writes b to path, or stdout for "-".
func writeOutput(cmd *cobra.Command, path string, b []byte) error {
	if path == "-" || path == "" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// readBase64 reads a base64 document, dropping CR and LF.
func readBase64(cmd *cobra.Command, path string) (string, error) {
	b, err := readInput(cmd, path)
	if err != nil {
		return "", err
	}
	return strings.NewReplacer("\r", "", "\n", "").Replace(string(b)), nil
}

func readMessage(cmd *cobra.Command, path string) (olm.Message, error) {
	b, err := readInput(cmd, path)
	if err != nil {
		return olm.Message{}, err
	}
	body := func(prefix string) string {
		return string(bytes.TrimRight(b[len(prefix):], "\r\n"))
	}
	switch {
	case bytes.HasPrefix(b, []byte(preKeyPrefix)):
		return olm.Message{Type: olm.MessageTypePreKey, Body: body(preKeyPrefix)}, nil
	case bytes.HasPrefix(b, []byte(messagePrefix)):
		return olm.Message{Type: olm.MessageTypeNormal, Body: body(messagePrefix)}, nil
	}
	return olm.Message{}, fmt.Errorf("expecting a PRE_KEY or MESSAGE message")
}

func writeMessage(cmd *cobra.Command, path string, m olm.Message) error {
	prefix := messagePrefix
	if m.Type == olm.MessageTypePreKey {
		prefix = preKeyPrefix
	}
	return writeOutput(cmd, path, []byte(prefix+m.Body))
}

// optArg returns args[i] or "-".
func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return "-"
}
