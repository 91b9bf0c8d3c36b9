package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/narrative/linker"
	"github.com/chazu/narrative/manifest"
)

var (
	buildOutput string
	buildNoGlue bool
)

var buildCmd = &cobra.Command{
	Use:   "build [DIR]",
	Short: "Compile the project containing DIR (default: the current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		m, err := loadProject(dir)
		if err != nil {
			return err
		}

		b, err := linker.LinkProject(cmd.Context(), m, nil)
		if err != nil {
			return err
		}

		out := m.OutputDir()
		if buildOutput != "" {
			out = buildOutput
		}
		if err := b.Write(out, m.Output.Glue && !buildNoGlue); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "built %d scenes into %s (build %s)\n", len(b.Units), out, b.ID)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output directory (overrides the manifest)")
	buildCmd.Flags().BoolVar(&buildNoGlue, "no-glue", false, "do not write the C glue sources")
}

// loadProject finds the narrative.toml governing dir.
func loadProject(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, dir)
	}
	return m, nil
}
