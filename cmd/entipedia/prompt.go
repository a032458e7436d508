package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/japaniel/entipedia/pkg/config"
	"golang.org/x/term"
)

var errNoKey = errors.New("no API key: set " + config.UserKeyEnv + ", pass --key, or run from a terminal to be prompted")

// terminalPrompt reads the API key from the terminal without echo.
func terminalPrompt(in *os.File, out io.Writer) func() (string, error) {
	return func() (string, error) {
		fd := int(in.Fd())
		if !term.IsTerminal(fd) {
			return "", errNoKey
		}
		fmt.Fprint(out, "Enter your Rosette API key: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read API key: %w", err)
		}
		key := strings.TrimSpace(string(b))
		if key == "" {
			return "", errNoKey
		}
		return key, nil
	}
}
