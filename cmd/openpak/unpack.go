package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive> [dest]",
	Short: "Extract every entry to a directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runUnpack,
}

func init() {
	rootCmd.AddCommand(unpackCmd)
}

func runUnpack(cmd *cobra.Command, args []string) error {
	dest := "."
	if len(args) == 2 {
		dest = args[1]
	}

	rd, closeFn, err := openArchive(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	paths := rd.Entries()
	sort.Strings(paths)
	for _, path := range paths {
		out, err := destPath(dest, path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := rd.Read(path, f); err != nil {
			f.Close()
			return fmt.Errorf("extract %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Println(path)
	}
	return nil
}

// destPath maps an archive path under dest, rejecting traversal outside it.
func destPath(dest, path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry path %q escapes the destination", path)
	}
	return filepath.Join(dest, clean), nil
}
