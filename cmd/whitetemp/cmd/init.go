package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/whitetemp/internal/config"
	"github.com/jmcleod/whitetemp/internal/token"
)

var (
	force     bool
	withToken bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file. With --token, also generate a random
admin API token next to it and point admin_token_file at it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		dir := filepath.Dir(configPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		cfg := config.Default()
		out := cmd.OutOrStdout()
		if withToken {
			tok, err := token.Generate()
			if err != nil {
				return err
			}
			cfg.AdminTokenFile = filepath.Join(dir, "admin_token")
			if err := token.WriteFile(cfg.AdminTokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote admin token to %s\n", cfg.AdminTokenFile)
		}

		if err := config.Save(cfg, configPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&withToken, "token", false, "Generate an admin API token file")
}
