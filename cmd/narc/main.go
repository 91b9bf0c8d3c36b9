// Command narc compiles narrative scene projects.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:           "narc",
	Short:         "Compiler for narrative scene scripts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commonlog.Configure(verbosity, nil)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.AddCommand(
		buildCmd,
		disasmCmd,
		runCmd,
		tokensCmd,
		lspCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
