// Package cmd provides the CLI commands for crawlbridge.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/crawlbridge/crawlbridge/pkg/version"
)

// NewRootCmd creates the root command for the crawlbridge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlbridge",
		Short: "Web crawling and RAG bridge for AI assistants",
		Long: `Crawlbridge crawls documentation sites, stores their content in
Postgres with pgvector, and serves it back to AI assistants over the
Model Context Protocol and a REST API.

Run 'crawlbridge serve' to start the server.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("crawlbridge version {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
