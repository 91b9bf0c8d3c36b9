package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/narrative/compiler"
)

var tokensRaw bool

var tokensCmd = &cobra.Command{
	Use:   "tokens FILE",
	Short: "Print the token stream of a scene source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		src := string(data)
		if !tokensRaw {
			if src, err = compiler.Preprocess(src); err != nil {
				return compiler.InFile(err, args[0])
			}
		}
		toks, err := compiler.Tokenize(src)
		if err != nil {
			return compiler.InFile(err, args[0])
		}
		out := cmd.OutOrStdout()
		for _, tok := range toks {
			fmt.Fprintf(out, "%4d:%-3d %s\n", tok.Pos.Line, tok.Pos.Column, tok)
		}
		return nil
	},
}

func init() {
	tokensCmd.Flags().BoolVar(&tokensRaw, "raw", false, "skip macro expansion")
}
