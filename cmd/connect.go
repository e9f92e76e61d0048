// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/cmarchand/xpath-basex-ext/internal/args"
	"github.com/cmarchand/xpath-basex-ext/internal/basex"
	"github.com/cmarchand/xpath-basex-ext/internal/bridge"
	"github.com/cmarchand/xpath-basex-ext/internal/config"
	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"
	"github.com/cmarchand/xpath-basex-ext/internal/keychain"
	"github.com/cmarchand/xpath-basex-ext/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var connectConn connFlags

// connectCmd asks for connection settings, checks them against the server and
// saves them: host, port and user to the config file, the password to the OS
// keychain.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Configure and verify the default BaseX connection",
	Long: `The connect command prompts for the server, port, user and password of a
BaseX server, opens a session to verify them and saves them as the default
connection. The password is stored in the OS keychain, never in the config
file. Values given as flags are not prompted for.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := promptDescriptor(bufio.NewReader(os.Stdin))
		if err != nil {
			return err
		}
		if _, err := bridge.ParsePort(d.Port); err != nil {
			return bxerrors.Wrap(bxerrors.ConnectionError, "checking port", err)
		}

		stop := spin("verifying connection")
		version, err := verify(cmd, d)
		stop()
		if err != nil {
			pterm.Error.Println("Connection failed. Check the server address and credentials.")
			return err
		}
		pterm.Success.Printf("Connected to %s as %s\n", d.Address(), d.User)
		if version != "" {
			pterm.Info.Println("Server " + version)
		}

		settings.Connection = config.Connection{Server: d.Host, Port: d.Port, User: d.User}
		if err := config.Save(settings); err != nil {
			return err
		}

		km, err := keychain.GetManager()
		if err != nil {
			pterm.Warning.Println("Secure storage is not available on this system; the password was not saved.")
			pterm.Println("   Provide it with --password or $" + config.EnvPassword + ".")
			return nil
		}
		if err := km.SavePassword(d.User, d.Host, d.Port, d.Password); err != nil {
			pterm.Error.Println("Failed to save the password securely.")
			return err
		}
		pterm.Println("Connection saved. Run 'basexq info' to review it.")
		return nil
	},
}

func promptDescriptor(r *bufio.Reader) (args.Descriptor, error) {
	d := args.Descriptor{Host: connectConn.server, Port: connectConn.port, User: connectConn.user, Password: connectConn.password}
	fields := []struct {
		label string
		dst   *string
		def   string
	}{
		{"Server", &d.Host, settings.Connection.Server},
		{"Port", &d.Port, settings.Connection.Port},
		{"User", &d.User, settings.Connection.User},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := terminal.Prompt(r, f.label, f.def)
		if err != nil {
			return d, err
		}
		*f.dst = strings.TrimSpace(v)
	}
	if d.Password == "" {
		pw, err := terminal.ReadSecret("Password: ")
		if err != nil {
			return d, err
		}
		d.Password = pw
	}
	if d.Host == "" || d.User == "" {
		return d, errors.New("server and user are required")
	}
	return d, nil
}

// verify opens and closes a session and returns the server version line, if any.
func verify(cmd *cobra.Command, d args.Descriptor) (string, error) {
	ctx := cmd.Context()
	s, err := basex.Dial(ctx, basex.Config{Address: d.Address(), User: d.User, Password: d.Password, Logger: logger})
	if err != nil {
		return "", bxerrors.Wrap(bxerrors.ConnectionError, "opening session with "+d.Address(), err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("closing session failed", logger.Args("kind", bxerrors.ReleaseWarning, "error", err.Error()))
		}
	}()

	res, err := s.Execute(ctx, "INFO")
	if err != nil {
		logger.Debug("INFO command failed", logger.Args("error", err.Error()))
		return "", nil
	}
	return serverVersion(res.Output), nil
}

// serverVersion extracts the "Version: ..." line of the INFO command output.
func serverVersion(info string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return "version " + strings.TrimSpace(v)
		}
	}
	return ""
}

func init() {
	connectConn.register(connectCmd, false)
	rootCmd.AddCommand(connectCmd)
}
