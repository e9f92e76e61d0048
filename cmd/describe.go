// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	"github.com/cmarchand/xpath-basex-ext/internal/extfunc"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// describeCmd prints the signatures a host engine sees for the extension function.
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show the extension function's name and signatures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog := extfunc.NewCatalog()
		if err := extfunc.New().Register(catalog); err != nil {
			return err
		}

		data := pterm.TableData{{"Function", "Namespace", "Signature", "Returns"}}
		for _, fn := range catalog.Functions() {
			for _, arity := range fn.Arities() {
				sig, err := signature(fn, arity)
				if err != nil {
					return err
				}
				data = append(data, []string{fn.QName().String(), fn.QName().URI, sig, string(fn.ResultType())})
			}
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func signature(fn extfunc.Function, arity int) (string, error) {
	types, err := fn.ArgumentTypes(arity)
	if err != nil {
		return "", err
	}
	names := map[int][]string{
		2: {"$query", "$connection"},
		5: {"$query", "$server", "$port", "$user", "$password"},
	}[arity]
	parts := make([]string, len(types))
	for i, t := range types {
		name := fmt.Sprintf("$arg%d", i+1)
		if i < len(names) {
			name = names[i]
		}
		parts[i] = name + " as " + string(t)
	}
	return fmt.Sprintf("%s(%s)", fn.QName(), strings.Join(parts, ", ")), nil
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
