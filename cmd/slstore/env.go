package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/stronglink/pkg/db"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect and mutate an environment's keyspace directly",
}

func init() {
	envCmd.PersistentFlags().String("path", "./data", "Environment storage directory")
	envCmd.PersistentFlags().Bool("nosync", false, "Open the environment with NOSYNC")

	envCmd.AddCommand(envPutCmd)
	envCmd.AddCommand(envGetCmd)
	envCmd.AddCommand(envScanCmd)
	envCmd.AddCommand(envDelCmd)
}

func openEnvFromFlags(cmd *cobra.Command, rdonly bool) (*db.Environment, error) {
	path, _ := cmd.Flags().GetString("path")
	nosync, _ := cmd.Flags().GetBool("nosync")

	var flags db.Flags
	if nosync {
		flags |= db.NOSYNC
	}
	if rdonly {
		flags |= db.RDONLY
	}

	env := db.NewEnvironment()
	if err := env.Open(path, flags, 0o600); err != nil {
		return nil, fmt.Errorf("opening environment at %s: %w", path, err)
	}
	return env, nil
}

var envPutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Write a single key/value pair and commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvFromFlags(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		txn, err := db.Begin(env, nil, db.ModeReadWrite, 0)
		if err != nil {
			return err
		}
		if err := txn.Put([]byte(args[0]), []byte(args[1]), 0); err != nil {
			_ = txn.Abort()
			return err
		}
		return txn.Commit()
	},
}

var envGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a single key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvFromFlags(cmd, true)
		if err != nil {
			return err
		}
		defer env.Close()

		txn, err := db.Begin(env, nil, db.ModeRead, 0)
		if err != nil {
			return err
		}
		defer txn.Abort()

		v, err := txn.Get([]byte(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(string(v))
		return nil
	},
}

var envDelCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a single key and commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvFromFlags(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		txn, err := db.Begin(env, nil, db.ModeReadWrite, 0)
		if err != nil {
			return err
		}
		cur, err := txn.Cursor()
		if err != nil {
			_ = txn.Abort()
			return err
		}
		if err := cur.DeleteKey([]byte(args[0])); err != nil {
			_ = txn.Abort()
			return err
		}
		return txn.Commit()
	},
}

var envScanCmd = &cobra.Command{
	Use:   "scan [prefix]",
	Short: "Print every key/value pair whose key starts with prefix (or all keys if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvFromFlags(cmd, true)
		if err != nil {
			return err
		}
		defer env.Close()

		var prefix []byte
		if len(args) == 1 {
			prefix = []byte(args[0])
		}

		txn, err := db.Begin(env, nil, db.ModeRead, 0)
		if err != nil {
			return err
		}
		defer txn.Abort()

		cur, err := txn.Cursor()
		if err != nil {
			return err
		}

		var k, v []byte
		if len(prefix) == 0 {
			k, v, err = cur.First(+1)
		} else {
			k, v, err = cur.Seek(prefix, +1)
		}
		for err == nil {
			if len(prefix) > 0 && !hasPrefix(k, prefix) {
				break
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\n", k, v)
			k, v, err = cur.Next(+1)
		}
		return nil
	},
}

func hasPrefix(s, prefix []byte) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}
