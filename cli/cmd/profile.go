package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/workwhile/automation/cli/internal/config"
	"github.com/workwhile/automation/cli/pkg/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
	Long:  "Profiles store the service URL, webhook path, signing key and NATS URL whctl talks to.",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a profile and make it current",
	Example: `  whctl profile set local --url http://localhost:3000
  whctl profile set staging --url https://hooks.staging.example.com --signing-key c2VjcmV0 --nats nats://nats:4222`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		name := args[0]
		profile, err := cfg.GetProfile(name)
		if err != nil {
			profile = config.DefaultProfile()
		}

		if url, _ := cmd.Flags().GetString("url"); url != "" {
			profile.URL = url
		}
		if key, _ := cmd.Flags().GetString("signing-key"); key != "" {
			profile.SigningKey = key
		}
		if path, _ := cmd.Flags().GetString("webhook-path"); path != "" {
			profile.WebhookPath = path
		}
		if natsURL, _ := cmd.Flags().GetString("nats"); natsURL != "" {
			profile.NATSURL = natsURL
		}

		if token, _ := cmd.Flags().GetString("admin-token"); token != "" {
			profile.AdminToken = token
		}

		if err := cfg.SaveProfile(name, profile); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		p.Success("Profile '%s' saved and selected", name)
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		profile, err := cfg.GetProfile(args[0])
		if err != nil {
			return err
		}
		if err := cfg.SaveProfile(args[0], profile); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		p.Success("Switched to profile '%s'", args[0])
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		if len(names) == 0 && p.Format == output.FormatTable {
			p.Info("No profiles configured. Create one with 'whctl profile set <name> --url <url>'")
			return nil
		}

		return p.Print(cfg.Profiles, func() *output.Table {
			t := output.NewTable("", "NAME", "URL", "SIGNED", "NATS")
			for _, name := range names {
				prof := cfg.Profiles[name]
				current := ""
				if name == cfg.CurrentProfile {
					current = "*"
				}
				t.AddRow(current, name, prof.URL, prof.SigningKey != "", prof.NATSURL)
			}
			return t
		})
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved profile",
	Long:  "Show the profile commands will use after defaults and flag overrides are applied.",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		prof := activeProfile(cmd)
		view := *prof
		if view.SigningKey != "" {
			view.SigningKey = "***"
		}
		if view.AdminToken != "" {
			view.AdminToken = "***"
		}

		return p.Print(view, func() *output.Table {
			t := output.NewTable("FIELD", "VALUE")
			t.AddRow("url", view.URL)
			t.AddRow("webhook_path", view.WebhookPath)
			t.AddRow("signing_key", view.SigningKey)
			t.AddRow("nats_url", view.NATSURL)
			return t
		})
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		p.Success("Profile '%s' removed", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileUseCmd, profileListCmd, profileShowCmd, profileRemoveCmd)

	profileSetCmd.Flags().String("webhook-path", "", "webhook path (default "+config.DefaultWebhookPath+")")
	profileSetCmd.Flags().String("nats", "", "NATS server URL for 'whctl tail'")
	profileSetCmd.Flags().String("admin-token", "", "bearer token for 'whctl dlq'")
}
