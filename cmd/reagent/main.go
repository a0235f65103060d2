package main

import (
	"context"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mark3labs/reagent/internal/logger"
)

const (
	logoText1 = "█▀█ █▀▀ ▄▀█ █▀▀ █▀▀ █▄ █ ▀█▀"
	logoText2 = "█▀▄ ██▄ █▀█ █▄█ ██▄ █ ▀█  █ "
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reagent",
	Short: "Reason-and-act assistant with MCP tools, streaming chat and a WebSocket API",
}

// renderLogo colors the logo lines (Catppuccin Mauve and Lavender)
func renderLogo() string {
	line1 := lipgloss.NewStyle().Foreground(lipgloss.Color("#cba6f7")).Render(logoText1)
	line2 := lipgloss.NewStyle().Foreground(lipgloss.Color("#b4befe")).Render(logoText2)
	return strings.Join([]string{line1, line2}, "\n")
}

func init() {
	rootCmd.Long = renderLogo() + `

reagent is an assistant that answers questions with a reason-and-act loop:
it streams its reasoning, calls tools from configured MCP servers when it
needs them, and keeps conversation history in embedded NATS JetStream.
Chat with it in the terminal or serve the WebSocket API for a browser
front end.`

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}
