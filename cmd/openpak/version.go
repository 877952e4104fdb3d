package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version <archive>",
	Short: "Print the negotiated format revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rd, closeFn, err := openArchive(cmd, args[0])
		if err != nil {
			return err
		}
		defer closeFn()
		fmt.Printf("%s (v%d)\n", rd.Version(), rd.Version().Ordinal())
		return nil
	},
}

var mountPointCmd = &cobra.Command{
	Use:   "mount-point <archive>",
	Short: "Print the archive's mount point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rd, closeFn, err := openArchive(cmd, args[0])
		if err != nil {
			return err
		}
		defer closeFn()
		fmt.Println(rd.MountPoint())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mountPointCmd)
}
