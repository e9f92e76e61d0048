// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/cmarchand/xpath-basex-ext/internal/args"
	"github.com/cmarchand/xpath-basex-ext/internal/config"
	"github.com/cmarchand/xpath-basex-ext/internal/keychain"
	"github.com/cmarchand/xpath-basex-ext/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// infoCmd shows the default connection with the password masked.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the default BaseX connection",
	Long: `The info command displays the connection basexq uses when no server is given
on the command line, and where its password comes from. The password itself
is never shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := settings.Connection
		d := args.Descriptor{Host: c.Server, Port: c.Port, User: c.User}

		source := passwordSource(d)
		path, _ := config.Path()

		body := fmt.Sprintf("Connection  %s\nPassword    %s\nConfig      %s",
			d.String(), source, path)
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("BaseX Connection")).
			WithPadding(1).
			Println(logging.Mask(body))
		pterm.Println()
		pterm.Println("To update this connection, run: basexq connect")
		return nil
	},
}

func passwordSource(d args.Descriptor) string {
	if _, ok := os.LookupEnv(config.EnvPassword); ok {
		return "from $" + config.EnvPassword
	}
	km, err := keychain.GetManager()
	if err != nil {
		return "keychain unavailable"
	}
	if _, err := km.LoadPassword(d.User, d.Host, d.Port); err != nil {
		if errors.Is(err, keychain.ErrNotFound) {
			return "not stored (will be prompted)"
		}
		return "keychain error: " + err.Error()
	}
	return "stored in OS keychain"
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
