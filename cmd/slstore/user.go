package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/stronglink/pkg/db"
	"github.com/cuemby/stronglink/pkg/sessioncache"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users in a session cache's backing environment",
}

func init() {
	userCmd.PersistentFlags().String("path", "./data", "Environment storage directory")
	userCmd.AddCommand(userCreateCmd)
}

// parseMode turns a comma-separated mode string (rdonly, wronly, admin,
// rdwr) into a sessioncache.Mode bitset. An empty string yields RDWR,
// matching the permissive default a first administrative user needs.
func parseMode(s string) (sessioncache.Mode, error) {
	if s == "" {
		return sessioncache.RDWR, nil
	}
	var mode sessioncache.Mode
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ',' {
			continue
		}
		tok := s[start:i]
		start = i + 1
		switch tok {
		case "rdonly":
			mode |= sessioncache.RDONLY
		case "wronly":
			mode |= sessioncache.WRONLY
		case "admin":
			mode |= sessioncache.ADMIN
		case "rdwr":
			mode |= sessioncache.RDWR
		default:
			return 0, fmt.Errorf("unknown mode token %q", tok)
		}
	}
	return mode, nil
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username> <password>",
	Short: "Create a user as the environment's root session (ADMIN|RDWR)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		modeStr, _ := cmd.Flags().GetString("mode")

		mode, err := parseMode(modeStr)
		if err != nil {
			return err
		}

		env := db.NewEnvironment()
		if err := env.Open(path, 0, 0o600); err != nil {
			return fmt.Errorf("opening environment at %s: %w", path, err)
		}
		defer env.Close()

		cache := sessioncache.NewCache(env, sessioncache.RDWR|sessioncache.ADMIN)
		root, err := sessioncache.CreateInternal(cache, 0, nil, nil, 0, sessioncache.ADMIN|sessioncache.RDWR, "root")
		if err != nil {
			return err
		}

		txn, err := db.Begin(env, nil, db.ModeReadWrite, 0)
		if err != nil {
			return err
		}
		userID, err := root.CreateUserInternal(txn, args[0], args[1], mode)
		if err != nil {
			_ = txn.Abort()
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}

		fmt.Printf("created user %q (id=%d, mode=%s)\n", args[0], userID, modeStr)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().String("mode", "", "Comma-separated permission mode for the new user (rdonly,wronly,admin,rdwr)")
}
