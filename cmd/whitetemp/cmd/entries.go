package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/whitetemp/command"
	"github.com/jmcleod/whitetemp/internal/listlock"
)

// mutating lists the commands that change the whitelist.
var mutating = map[string]bool{"wtadd": true, "wtrem": true, "wtprlng": true}

// runSurface runs one command line as the server console would and prints
// the reply. A running server gets the command through its admin API.
// Otherwise the whitelist file is edited directly, which is refused for
// mutations while a server holds the list: its next save would undo them.
func runSurface(cmd *cobra.Command, words ...string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	line := strings.Join(words, " ")

	reply, err := forwardCommand(cmd.Context(), cfg, line)
	if err == nil {
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	}
	if !errors.Is(err, errNoServer) {
		return err
	}
	logger.Debug("editing the whitelist directly", "reason", err)

	if mutating[words[0]] {
		pid, err := listlock.Holder(cfg.ListPath)
		if err != nil {
			return err
		}
		if pid != 0 {
			return fmt.Errorf("whitelist %s is in use by server process %d and its admin API is not reachable: "+
				"run %q in the server console, or delete %s if no server is running",
				cfg.ListPath, pid, line, listlock.Path(cfg.ListPath))
		}
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	surface := command.New(store, command.WithLogger(logger))
	reply, err = surface.Execute(command.Console{}, line)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

var addCmd = &cobra.Command{
	Use:   "add <player> <duration>",
	Short: "Whitelist a player for a duration such as 30m or 7d",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSurface(cmd, "wtadd", args[0], args[1])
	},
}

var remCmd = &cobra.Command{
	Use:     "rem <player>",
	Aliases: []string{"remove"},
	Short:   "Remove a player from the whitelist",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSurface(cmd, "wtrem", args[0])
	},
}

var prolongCmd = &cobra.Command{
	Use:   "prolong <player> <duration>",
	Short: "Extend a player's whitelist time",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSurface(cmd, "wtprlng", args[0], args[1])
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <player>",
	Short: "Show how long a player stays whitelisted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSurface(cmd, "wtcheck", args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every whitelisted player",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSurface(cmd, "wtlist")
	},
}

func init() {
	rootCmd.AddCommand(addCmd, remCmd, prolongCmd, checkCmd, listCmd)
}
