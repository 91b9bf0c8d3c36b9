package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/narrative/manifest"
	"github.com/chazu/narrative/server"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the language server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// outside a project every open document is compiled on its own
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			return err
		}
		return server.NewLSP(m).Run()
	},
}
