package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/narrative/linker"
	"github.com/chazu/narrative/pkg/bytecode"
)

var disasmSymbols string

var disasmCmd = &cobra.Command{
	Use:   "disasm FILE",
	Short: "Print the listing of a compiled scene image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		img, err := bytecode.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		name := filepath.Base(args[0])
		var annotate bytecode.Annotator
		if disasmSymbols != "" {
			raw, err := os.ReadFile(disasmSymbols)
			if err != nil {
				return err
			}
			sf, err := linker.UnmarshalSymbols(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", disasmSymbols, err)
			}
			name = fmt.Sprintf("%s [[%s]] build %s", name, sf.Scene, sf.BuildID)
			annotate = sf.Annotator()
		}
		fmt.Fprint(cmd.OutOrStdout(), img.DisassembleWith(name, annotate))
		return nil
	},
}

func init() {
	disasmCmd.Flags().StringVarP(&disasmSymbols, "symbols", "s", "", "symbol file (.sym) naming the operands")
}
