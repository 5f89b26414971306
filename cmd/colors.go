package cmd

import (
	"strings"

	"github.com/fatih/color"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatStateWithColor(state string) string {
	switch strings.ToLower(state) {
	case "succeeded":
		return colorSuccess(state)
	case "failed":
		return colorError(state)
	case "analyzing":
		return colorWarn(state)
	default:
		return state
	}
}
