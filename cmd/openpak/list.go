package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/openpak/openpak/pak"
	"github.com/openpak/openpak/storage"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "List the entries of an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolP("long", "l", false, "show sizes, compression, and encryption")
	rootCmd.AddCommand(listCmd)
}

// openArchive opens an archive path (local or gs://) with the persistent
// flag options applied.
func openArchive(cmd *cobra.Command, path string) (*pak.Reader, func(), error) {
	opts, err := readerOptions(cmd)
	if err != nil {
		return nil, nil, err
	}
	src, err := storage.Open(context.Background(), path)
	if err != nil {
		return nil, nil, err
	}
	rd, err := pak.Open(src, src.Size, opts...)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return rd, src.Close, nil
}

func runList(cmd *cobra.Command, args []string) error {
	long, _ := cmd.Flags().GetBool("long")

	rd, closeFn, err := openArchive(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	paths := rd.Entries()
	sort.Strings(paths)
	for _, path := range paths {
		if !long {
			fmt.Println(path)
			continue
		}
		info, err := rd.Stat(path)
		if err != nil {
			return err
		}
		enc := " "
		if info.Encrypted {
			enc = "E"
		}
		fmt.Printf("%12d  %-5s %s  %s\n", info.UncompressedSize, info.Method, enc, path)
	}
	return nil
}
