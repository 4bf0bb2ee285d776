package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/stronglink/pkg/db"
	"github.com/cuemby/stronglink/pkg/sessioncache"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and mint session cookies against an environment",
}

func init() {
	sessionCmd.PersistentFlags().String("path", "./data", "Environment storage directory")
	sessionCmd.AddCommand(sessionCookieCmd)
	sessionCmd.AddCommand(sessionResolveCmd)
}

var sessionCookieCmd = &cobra.Command{
	Use:   "cookie <session-id> <mode>",
	Short: "Mint a cookie for a freshly-created, unregistered in-process session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sessionID uint64
		if _, err := fmt.Sscanf(args[0], "%d", &sessionID); err != nil {
			return fmt.Errorf("invalid session id %q: %w", args[0], err)
		}
		mode, err := parseMode(args[1])
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("path")
		env := db.NewEnvironment()
		if err := env.Open(path, 0, 0o600); err != nil {
			return fmt.Errorf("opening environment at %s: %w", path, err)
		}
		defer env.Close()

		cache := sessioncache.NewCache(env, mode)
		rawKey := make([]byte, sessioncache.SessionKeyLen)
		s, err := sessioncache.CreateInternal(cache, sessionID, rawKey, nil, 0, mode, "")
		if err != nil {
			return err
		}
		cache.Register(s)

		cookie, ok := s.CopyCookie()
		if !ok {
			return fmt.Errorf("session has no raw key to render a cookie from")
		}
		fmt.Println(cookie)
		return nil
	},
}

var sessionResolveCmd = &cobra.Command{
	Use:   "resolve <cookie>",
	Short: "Resolve a cookie against an empty cache (always anonymous; for cookie-format checking)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		env := db.NewEnvironment()
		if err := env.Open(path, 0, 0o600); err != nil {
			return fmt.Errorf("opening environment at %s: %w", path, err)
		}
		defer env.Close()

		cache := sessioncache.NewCache(env, sessioncache.RDWR)
		s, err := cache.CopyActiveSession(args[0])
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Println("anonymous")
			return nil
		}
		defer s.Release()
		fmt.Printf("user=%s mode=%d\n", s.Username(), s.ModeBits())
		return nil
	},
}
