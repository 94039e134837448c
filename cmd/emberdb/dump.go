package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print all key-value pairs in ascending key order",
	RunE:  dumpRun,
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Force a snapshot and truncate the write-ahead log",
	RunE:  checkpointRun,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func dumpRun(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	db.ForEach(func(key, value []byte) bool {
		fmt.Fprintf(os.Stdout, "%s\t%s\n", key, value)
		return true
	})
	return nil
}

func checkpointRun(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Checkpoint(); err != nil {
		return err
	}
	fmt.Printf("checkpoint complete: %d entries\n", db.Len())
	return nil
}
