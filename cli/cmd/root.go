package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/internal/client"
	"github.com/workwhile/automation/cli/internal/config"
	"github.com/workwhile/automation/cli/pkg/output"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "whctl",
	Short: "WorkWhile webhook CLI",
	Long: `whctl sends OpenPhone-style webhook events to a WorkWhile automation
server, seeds it with generated traffic and tails the events it publishes.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.whctl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().String("url", "", "server base URL (overrides profile)")
	rootCmd.PersistentFlags().String("signing-key", "", "base64 webhook signing key (overrides profile)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// activeProfile resolves the selected profile and applies flag overrides.
func activeProfile(cmd *cobra.Command) *config.Profile {
	if cfg == nil {
		cfg = config.Default()
	}
	name, _ := cmd.Flags().GetString("profile")
	p := cfg.Resolve(name)

	if url, _ := cmd.Flags().GetString("url"); url != "" {
		p.URL = url
	}
	if key, _ := cmd.Flags().GetString("signing-key"); key != "" {
		p.SigningKey = key
	}
	return p
}

func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, _ := cmd.Flags().GetString("output")
	return output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format)
}

func newWebhookClient(cmd *cobra.Command) (*client.WebhookClient, error) {
	p := activeProfile(cmd)
	return client.NewWebhookClient(p.URL, p.WebhookPath, p.SigningKey)
}
