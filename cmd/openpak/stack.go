package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/openpak/openpak/stack"
	"github.com/spf13/cobra"
)

var stackCmd = &cobra.Command{
	Use:   "stack <dir>",
	Short: "List the merged view of every archive in a directory",
	Long: "Opens every *.pak under the directory in lexical mount order and\n" +
		"prints the merged entry list, with later (patch) archives shadowing\n" +
		"earlier ones.",
	Args: cobra.ExactArgs(1),
	RunE: runStack,
}

func init() {
	stackCmd.Flags().BoolP("long", "l", false, "show which archive wins for each entry")
	rootCmd.AddCommand(stackCmd)
}

func runStack(cmd *cobra.Command, args []string) error {
	long, _ := cmd.Flags().GetBool("long")

	var opts stack.Options
	if keyText, _ := cmd.Flags().GetString("key"); keyText != "" {
		key, err := parseKey(keyText)
		if err != nil {
			return err
		}
		opts.Key = key
	}

	st, err := stack.OpenDir(context.Background(), args[0], opts)
	if err != nil {
		return err
	}
	defer st.Close()

	archives := st.Archives()
	paths := st.Entries()
	sort.Strings(paths)
	for _, path := range paths {
		if !long {
			fmt.Println(path)
			continue
		}
		winner, _ := st.Resolve(path)
		idx := 0
		for i, rd := range archives {
			if rd == winner {
				idx = i
				break
			}
		}
		fmt.Printf("%3d  %s\n", idx, path)
	}
	return nil
}
