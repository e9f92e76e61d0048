// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"

	"github.com/cmarchand/xpath-basex-ext/internal/args"
	"github.com/cmarchand/xpath-basex-ext/internal/config"
	"github.com/cmarchand/xpath-basex-ext/internal/keychain"
	"github.com/cmarchand/xpath-basex-ext/internal/terminal"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"
)

// connFlags are the connection flags shared by commands that talk to a server.
type connFlags struct {
	server   string
	port     string
	user     string
	password string
	file     string
}

func (f *connFlags) register(cmd *cobra.Command, withFile bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.server, "server", "s", "", "BaseX server host (default from config)")
	fs.StringVarP(&f.port, "port", "p", "", "BaseX server port (default from config)")
	fs.StringVarP(&f.user, "user", "u", "", "BaseX user (default from config)")
	fs.StringVar(&f.password, "password", "", "BaseX password (default from $"+config.EnvPassword+" or the keychain)")
	if withFile {
		fs.StringVarP(&f.file, "connection", "c", "", "XML file holding a <basex> connection element")
		cmd.MarkFlagsMutuallyExclusive("connection", "server")
		cmd.MarkFlagsMutuallyExclusive("connection", "port")
		cmd.MarkFlagsMutuallyExclusive("connection", "user")
		cmd.MarkFlagsMutuallyExclusive("connection", "password")
	}
}

// descriptor merges flags over the loaded settings and finds the password.
func (f *connFlags) descriptor() (args.Descriptor, error) {
	d := args.Descriptor{
		Host: pick(f.server, settings.Connection.Server),
		Port: pick(f.port, settings.Connection.Port),
		User: pick(f.user, settings.Connection.User),
	}
	pw, err := f.lookupPassword(d)
	if err != nil {
		return d, err
	}
	d.Password = pw
	logger.Debug("connection resolved", logger.Args("connection", d.String()))
	return d, nil
}

// lookupPassword tries the flag, the environment, the keychain and finally an
// interactive prompt, in that order.
func (f *connFlags) lookupPassword(d args.Descriptor) (string, error) {
	if f.password != "" {
		return f.password, nil
	}
	if pw, ok := config.PasswordFromEnv(); ok {
		return pw, nil
	}
	if km, err := keychain.GetManager(); err == nil {
		pw, err := km.LoadPassword(d.User, d.Host, d.Port)
		if err == nil {
			return pw, nil
		}
		if !errors.Is(err, keychain.ErrNotFound) {
			logger.Warn("reading keychain failed", logger.Args("error", err.Error()))
		}
	} else {
		logger.Debug("keychain unavailable", logger.Args("error", err.Error()))
	}
	if !terminal.IsInteractive() {
		return "", fmt.Errorf("no password for %s: use --password, $%s or 'basexq connect'", d, config.EnvPassword)
	}
	prompt := fmt.Sprintf("Password for %s@%s: ", d.User, d.Address())
	pw, err := terminal.ReadSecret(prompt)
	if err != nil {
		return "", err
	}
	terminal.ClearPreviousLines(len(prompt))
	return pw, nil
}

// callValues builds the actual arguments of a basex-query call: the two
// argument form when a connection file was given, the five argument form
// otherwise.
func (f *connFlags) callValues(query string) ([]any, error) {
	if f.file != "" {
		doc := etree.NewDocument()
		if err := doc.ReadFromFile(f.file); err != nil {
			return nil, fmt.Errorf("reading connection file: %w", err)
		}
		logger.Debug("using connection file", logger.Args("path", f.file))
		return []any{query, doc}, nil
	}
	d, err := f.descriptor()
	if err != nil {
		return nil, err
	}
	return []any{query, d.Host, d.Port, d.User, d.Password}, nil
}

func pick(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
