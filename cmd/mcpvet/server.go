package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpvet/mcpvet-core/pkg/process"
	"github.com/mcpvet/mcpvet-core/pkg/registry"
)

var (
	flagServerRegistry string
	flagKeepFiles      bool
)

func init() {
	serverCmd.PersistentFlags().StringVar(&flagServerRegistry, "registry", defaultRegistryPath(), "Path to the registry file")
	serverRemoveCmd.Flags().BoolVar(&flagKeepFiles, "keep-files", false, "Keep stored server files on disk")

	serverCmd.AddCommand(serverListCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverRestartCmd)
	rootCmd.AddCommand(serverCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage verified servers",
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List verified servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := registry.Open(flagServerRegistry)
		if err != nil {
			return err
		}

		entries := store.List()
		if len(entries) == 0 {
			fmt.Println("No verified servers registered.")
			return nil
		}
		for _, entry := range entries {
			fmt.Printf("%s\t%s\t%s\n\t%s\n", entry.Name, entry.Type, entry.Path, entry.Description)
		}
		return nil
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a verified server from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := registry.Open(flagServerRegistry)
		if err != nil {
			return err
		}

		name := args[0]
		entry, err := store.Get(name)
		if err != nil {
			return err
		}
		if err := store.Remove(name); err != nil {
			return err
		}

		if !flagKeepFiles {
			if err := os.RemoveAll(entry.Path); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to remove stored files at %s: %v\n", entry.Path, err)
			}
		}
		fmt.Printf("Removed %s\n", name)
		return nil
	},
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart [name]",
	Short: "Restart a verified server and report its health",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := registry.Open(flagServerRegistry)
		if err != nil {
			return err
		}

		supervisor := process.NewSupervisor(store, newLogger(false))
		defer supervisor.StopAll()

		name := args[0]
		if err := supervisor.RestartServer(context.Background(), name); err != nil {
			return err
		}
		fmt.Printf("Server %s restarted and healthy\n", name)
		return nil
	},
}
