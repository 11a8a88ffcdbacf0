package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/erp-automation/internal/auth"
)

func newHashKeyCmd() *cobra.Command {
	params := auth.DefaultArgon2idParams

	cmd := &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Hash an API key for ERP_API_KEY_HASH",
		Long:  "Hash an API key with argon2id. The key is read from the first line of stdin when not given as an argument.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key from stdin: %w", err)
				}
				key = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashAPIKey(key, params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&params.Memory, "memory", params.Memory, "argon2id memory in KiB")
	cmd.Flags().Uint32Var(&params.Iterations, "iterations", params.Iterations, "argon2id iterations")
	cmd.Flags().Uint8Var(&params.Parallelism, "parallelism", params.Parallelism, "argon2id parallelism")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		admin   bool
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the service's JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("a signing secret is required (--secret or ERP_JWT_SECRET)")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			token, err := auth.NewTokenIssuer([]byte(secret), time.Now).Issue(subject, admin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("ERP_JWT_SECRET"), "HS256 signing secret")
	cmd.Flags().StringVar(&subject, "subject", "", "user the token acts as")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
