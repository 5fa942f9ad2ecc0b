package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/lawoffice/billinghub/lib/service"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "billinghub",
		Short:         "Billable time and client invoices for a law office",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	load := func() (*service.Config, error) {
		return loadConfig(envFile)
	}
	cmd.AddCommand(newServeCommand(load))
	cmd.AddCommand(newMigrateCommand(load))
	return cmd
}

// loadConfig reads the configuration from the environment, after loading
// envFile when it exists.
func loadConfig(envFile string) (*service.Config, error) {
	c := &service.Config{}
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Failed to load %s file\n", envFile)
	}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}
	return c, nil
}
