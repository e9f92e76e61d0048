// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	bxerrors "github.com/cmarchand/xpath-basex-ext/internal/errors"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// FormatError explains err in a user-friendly way according to its kind.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var builder strings.Builder

	kind := bxerrors.KindOf(err)
	switch kind {
	case bxerrors.ArgumentError:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Invalid Call"))
		builder.WriteString("\n\n")
		builder.WriteString("basex-query was called with arguments it does not accept.\n")
		builder.WriteString("Accepted forms:\n")
		builder.WriteString("  • basex-query($query, <basex><server/><port/><user/><password/></basex>)\n")
		builder.WriteString("  • basex-query($query, $server, $port, $user, $password)\n")

	case bxerrors.ConnectionError:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Connection Failed"))
		builder.WriteString("\n\n")
		builder.WriteString("No session could be opened with the BaseX server.\n")
		builder.WriteString("This usually happens when:\n")
		builder.WriteString("  • The server is not running or the port is wrong\n")
		builder.WriteString("  • The port is not a number between 1 and 65535\n")
		builder.WriteString("  • The user name or password was rejected\n")

	case bxerrors.QueryError:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Query Failed"))
		builder.WriteString("\n\n")
		builder.WriteString("The server rejected the query or a result could not be read.\n")
		builder.WriteString("This could mean:\n")
		builder.WriteString("  • The query has a syntax or evaluation error\n")
		builder.WriteString("  • A result item is not well-formed XML\n")
		builder.WriteString("  • The connection dropped while results were streaming\n")

	default:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Error"))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))

	return builder.String()
}

// PresentQueryError displays a formatted error.
func PresentQueryError(err error) {
	fmt.Println()
	fmt.Println(FormatError(err))
	fmt.Println()
}
