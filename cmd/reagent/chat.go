package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/reagent/internal/agent"
	"github.com/mark3labs/reagent/internal/classify"
	"github.com/mark3labs/reagent/internal/console"
	"github.com/mark3labs/reagent/internal/mcp"
)

var chatFlags struct {
	session string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Chat with the assistant in an interactive terminal session.

The assistant streams its reasoning and answers, calls MCP tools when it
needs them, and remembers the conversation across runs. Type 'exit' to
leave, 'help' for usage.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatFlags.session, "session", "s", "default", "Session name for conversation history")
}

const welcome = `
╔══════════════════════════════════════════════════════════════╗
║                 Welcome to the reagent assistant             ║
╚══════════════════════════════════════════════════════════════╝

This assistant works in a reason-and-act loop. It can:
  • observe and understand your question
  • think through a solution
  • call tools to get things done
  • remember the conversation

Usage:
  • type your question and press enter
  • type 'exit' or 'quit' to leave
  • type 'help' to see this again
`

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	// Graceful shutdown on Ctrl+C / SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nGoodbye!")
		cancel()
		rt.shutdown()
		os.Exit(0)
	}()

	a := agent.New(rt.eng, rt.tools, rt.store, chatFlags.session)
	fmt.Print(welcome)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n👤 You: ")
		if !scanner.Scan() {
			// Ctrl+D
			fmt.Println("\nGoodbye!")
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "bye":
			fmt.Println("\nGoodbye! Thanks for using reagent.")
			return nil
		case "help":
			fmt.Print(welcome)
			continue
		}

		runChatTurn(ctx, a, rt.tools, input)
	}
}

// runChatTurn streams one turn to the terminal. Failures are shown to the
// user and the prompt loop continues.
func runChatTurn(ctx context.Context, a *agent.Agent, tools *mcp.Manager, input string) {
	stream := a.Stream(ctx, input)
	defer stream.Close()

	renderer := console.NewRenderer(os.Stdout)
	cls := classify.New(stream, classify.NewResolver(tools.Providers()))
	for {
		ev, err := cls.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			renderer.RenderError(err)
			return
		}
		renderer.Render(ev)
	}
}
