package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/narrative/linker"
	"github.com/chazu/narrative/pkg/bytecode"
	"github.com/chazu/narrative/vm"
)

var runMaxSteps int

var runCmd = &cobra.Command{
	Use:   "run DIR SCENE",
	Short: "Link the project in DIR and play SCENE on the reference interpreter",
	Long: `Links the project in memory and plays it from SCENE. Displayed options
are numbered from 1; choices are read one per line from stdin. Natives
return zero (STRING* natives return the empty string).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadProject(args[0])
		if err != nil {
			return err
		}
		b, err := linker.LinkProject(cmd.Context(), m, nil)
		if err != nil {
			return err
		}
		return play(b, args[1], cmd.InOrStdin(), cmd.OutOrStdout(), runMaxSteps)
	},
}

func init() {
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 1000000, "instruction limit per step (0 for none)")
}

// play runs b starting at scene until a scene ends without options or
// the input is exhausted. STORE values survive leaving and re-entering a
// scene.
func play(b *linker.Build, scene string, in io.Reader, out io.Writer, maxSteps int) error {
	u, ok := b.Unit(scene)
	if !ok {
		return fmt.Errorf("no scene named %s", scene)
	}
	globals, err := bytecode.UnmarshalGlobals(b.GlobalsFile)
	if err != nil {
		return err
	}

	m := vm.New(out, globals)
	m.MaxSteps = maxSteps
	for _, p := range b.Natives.Prototypes() {
		m.Register(string(p.Name), len(p.Params), func(*vm.Machine, []int32) (int32, error) {
			return 0, nil
		})
	}

	stored := make(map[uint32][]int32)
	input := bufio.NewScanner(in)
	if err := m.Load(u.Binary); err != nil {
		return err
	}
	res, err := m.Run()
	for {
		if err != nil {
			return fmt.Errorf("[[%s]]: %w", u.Source.Name, err)
		}
		if res.Switched {
			next, ok := b.UnitByHash(res.Scene)
			if !ok {
				return fmt.Errorf("[[%s]]: switch to unknown scene hash %#08x", u.Source.Name, res.Scene)
			}
			stored[u.Hash] = m.Persisted()
			u = next
			if err := m.Load(u.Binary); err != nil {
				return err
			}
			if values, ok := stored[u.Hash]; ok {
				if err := m.Restore(values); err != nil {
					return err
				}
			}
			res, err = m.Run()
			continue
		}
		if len(res.Options) == 0 {
			return nil
		}

		for i, opt := range res.Options {
			text, err := m.OptionText(opt)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %d) %s\n", i+1, text)
		}
		var choice int
		if choice, err = readChoice(input, out, len(res.Options)); err != nil {
			return err
		}
		if choice < 0 {
			return nil
		}
		res, err = m.Choose(res.Options[choice])
	}
}

// readChoice prompts until a valid option number is entered. It returns
// -1 at end of input.
func readChoice(input *bufio.Scanner, out io.Writer, n int) (int, error) {
	for {
		fmt.Fprint(out, "> ")
		if !input.Scan() {
			fmt.Fprintln(out)
			return -1, input.Err()
		}
		i, err := strconv.Atoi(strings.TrimSpace(input.Text()))
		if err == nil && i >= 1 && i <= n {
			return i - 1, nil
		}
		fmt.Fprintf(out, "enter a number from 1 to %d\n", n)
	}
}
