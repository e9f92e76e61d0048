// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	"github.com/cmarchand/xpath-basex-ext/internal/basex"
	"github.com/cmarchand/xpath-basex-ext/internal/bridge"
	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"

	"github.com/spf13/cobra"
)

var execConn connFlags

// execCmd runs one database command, such as LIST or OPEN db, and prints its output.
var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run a BaseX database command",
	Long: `The exec command sends a single BaseX command (for example LIST, INFO DB or
CREATE DB name) to the server and prints its output. The server's info text is
logged at debug level.`,
	Example: `  basexq exec LIST
  basexq exec "INFO DB" --server db.example.org`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := execConn.descriptor()
		if err != nil {
			return err
		}
		if _, err := bridge.ParsePort(d.Port); err != nil {
			return bxerrors.Wrap(bxerrors.ConnectionError, "resolving server address", err)
		}

		ctx := cmd.Context()
		s, err := basex.Dial(ctx, basex.Config{Address: d.Address(), User: d.User, Password: d.Password, Logger: logger})
		if err != nil {
			return bxerrors.Wrap(bxerrors.ConnectionError, "opening session with "+d.Address(), err)
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing session failed", logger.Args("kind", bxerrors.ReleaseWarning, "error", err.Error()))
			}
		}()

		res, err := s.Execute(ctx, strings.Join(args, " "))
		if err != nil {
			return bxerrors.Wrap(bxerrors.QueryError, "executing command", err)
		}
		if res.Output != "" {
			fmt.Println(strings.TrimRight(res.Output, "\n"))
		}
		logger.Debug("command info", logger.Args("info", strings.TrimSpace(res.Info)))
		return nil
	},
}

func init() {
	execConn.register(execCmd, false)
	rootCmd.AddCommand(execCmd)
}
