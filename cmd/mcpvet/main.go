// Package main is the entry point for the mcpvet CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mcpvet",
	Short: "MCP server verification engine CLI",
	Long: `Verifies third-party MCP server packages before registry admission.
Analyzes code for security and guideline compliance, scores the implementation
against its description, and empirically boots the server in an isolated process.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
