package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/wlshell/internal/ipc"
	"github.com/1broseidon/wlshell/internal/mcp"
)

const mcpUsage = `Usage: wlshell mcp serve

Start an MCP server on stdio. Its tools (get_status, list_windows,
list_popups, ping_window, break_grabs) talk to a running daemon through
the control socket.`

func runMCP(args []string) int {
	if len(args) == 0 || args[0] != "serve" {
		switch {
		case len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help"):
			fmt.Fprintln(os.Stdout, mcpUsage)
			return 0
		case len(args) > 0:
			fmt.Fprintf(os.Stderr, "Unknown mcp command: %s\n\n", args[0])
		}
		fmt.Fprintln(os.Stderr, mcpUsage)
		return 2
	}

	fs := flag.NewFlagSet("mcp serve", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprintln(fs.Output(), mcpUsage) }
	if code, ok := noArgs(fs, args[1:]); !ok {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol; diagnostics go to stderr.
	log.SetOutput(os.Stderr)
	if err := mcp.NewServer(ipc.NewClient()).Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
	return 0
}
