// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cmarchand/xpath-basex-ext/internal/bridge"
	"github.com/cmarchand/xpath-basex-ext/internal/extfunc"

	"github.com/spf13/cobra"
)

var (
	queryConn   connFlags
	queryFile   string
	queryLimit  int
	queryIndent int
)

// queryCmd evaluates one query through the basex-query function and prints
// every result document as soon as it is read.
var queryCmd = &cobra.Command{
	Use:   "query [xquery]",
	Short: "Evaluate a query and stream its results",
	Long: `The query command calls efl-ext:basex-query with the given query and prints
each result item as an XML document, one per line group, as it arrives.

With --connection the query is sent with a <basex> connection element read
from a file (the two argument form). Otherwise the server, port, user and
password are passed as separate arguments (the five argument form).

The query text is taken from the argument, from --file, or from stdin when
neither is given. With --limit the stream is abandoned after that many items
and the session is dropped.`,
	Example: `  basexq query 'for $i in 1 to 10 return <test>{$i}</test>'
  basexq query --connection conn.xml --file report.xq --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := queryText(args)
		if err != nil {
			return err
		}
		values, err := queryConn.callValues(text)
		if err != nil {
			return err
		}

		catalog := extfunc.NewCatalog()
		if err := extfunc.New(bridge.WithLogger(logger)).Register(catalog); err != nil {
			return err
		}
		fn, err := catalog.Lookup(extfunc.New().QName(), len(values))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		stop := spin("running query")
		seq, err := fn.Call(ctx, values...)
		stop()
		if err != nil {
			return err
		}
		defer seq.Close()

		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()

		for doc, err := range seq.All(ctx) {
			if err != nil {
				return err
			}
			if queryIndent > 0 {
				doc.Indent(queryIndent)
			}
			s, err := doc.WriteToString()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, strings.TrimRight(s, "\n"))
			if err := out.Flush(); err != nil {
				return err
			}
			if queryLimit > 0 && seq.Position() >= queryLimit {
				logger.Debug("item limit reached", logger.Args("limit", queryLimit))
				break
			}
		}
		logger.Debug("query finished", logger.Args("items", seq.Position()))
		return nil
	},
}

func queryText(args []string) (string, error) {
	switch {
	case len(args) == 1 && queryFile != "":
		return "", errors.New("give the query either as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case queryFile != "":
		b, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("reading query file: %w", err)
		}
		return string(b), nil
	default:
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading query from stdin: %w", err)
		}
		if strings.TrimSpace(string(b)) == "" {
			return "", errors.New("no query given")
		}
		return string(b), nil
	}
}

func init() {
	queryConn.register(queryCmd, true)
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "Stop after this many items (0 for all)")
	queryCmd.Flags().IntVar(&queryIndent, "indent", 0, "Re-indent each document with this many spaces")
	rootCmd.AddCommand(queryCmd)
}
