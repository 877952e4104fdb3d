package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/openpak/openpak/pak"
	"github.com/openpak/openpak/storage"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "openpak",
	Short: "Tools for reading Unreal Engine .pak archives",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{} // omit timestamp for concise CLI output
					}
					return a
				},
			})
			storage.SetLogger(slog.New(h))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "log storage requests and latency to stderr")
	rootCmd.PersistentFlags().String("key", "", "AES key for encrypted archives (hex or base64)")
	rootCmd.PersistentFlags().String("format-version", "", "pin the format revision by name instead of probing")
}

// readerOptions turns the persistent flags into pak.Open options.
func readerOptions(cmd *cobra.Command) ([]pak.Option, error) {
	var opts []pak.Option
	if keyText, _ := cmd.Flags().GetString("key"); keyText != "" {
		key, err := parseKey(keyText)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pak.WithKey(key))
	}
	if name, _ := cmd.Flags().GetString("format-version"); name != "" {
		v, ok := pak.VersionByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown format revision %q", name)
		}
		opts = append(opts, pak.WithVersion(v))
	}
	return opts, nil
}

// parseKey decodes an AES key given as hex or base64.
func parseKey(text string) ([]byte, error) {
	if key, err := hex.DecodeString(text); err == nil {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(text); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("key is neither valid hex nor base64")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
