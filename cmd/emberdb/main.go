// Command emberdb is the CLI for inspecting and benchmarking emberdb
// stores.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"emberdb"
	"emberdb/logger"
)

var (
	walPath  string
	logLevel string

	log = logrus.New()

	rootCmd = &cobra.Command{
		Use:               "emberdb",
		Short:             "An embedded crash-consistent ordered key-value store",
		PersistentPreRunE: setupLogging,
		SilenceUsage:      true,
	}
)

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&walPath, "wal", "emberdb.wal", "`path` of the write-ahead log")
	fs.StringVar(&logLevel, "log-level", "warn",
		"log level: debug, info, warn, or error")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("emberdb: %s", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{DisableLevelTruncation: true})
	return nil
}

// openStore opens the store at --wal with CLI logging attached.
func openStore(opts ...emberdb.Option) (*emberdb.DB, error) {
	opts = append(opts, emberdb.WithLogger(logger.NewLogrus(log)))
	db, err := emberdb.Open(walPath, opts...)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
