// Copyright 2025 Phillip Lindsay
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/plindsay/jwtlifecycle/internal/app"
	"github.com/plindsay/jwtlifecycle/internal/config"
	"github.com/plindsay/jwtlifecycle/internal/log"
	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

type globalOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "tokenctl",
		Short: "Issue, decode and revoke tokens",
		Long: `tokenctl drives the token lifecycle manager from the command line.

Tokens are created and decoded through the configured encoder (jwt or jwe)
and pass through the registered hooks: claim enrichment and validation,
revocation checks, per-identity throttling and audit logging.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "",
		"config file (default is ./config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"debug logging")

	root.AddCommand(newIssueCmd(opts))
	root.AddCommand(newDecodeCmd(opts))
	root.AddCommand(newRevokeCmd(opts))
	root.AddCommand(newPurgeCmd(opts))
	return root
}

// withApp loads configuration, builds the App and runs fn with a
// request-scoped context.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := log.ParseLevel(cfg.Log.Level)
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := log.WithFields(log.New(&log.Config{
		Level:       level,
		Format:      cfg.Log.Format,
		ServiceName: "tokenctl",
		Output:      cmd.ErrOrStderr(),
	}), "command", cmd.Name())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := uuid.NewString()
	ctx = log.WithRequestID(ctx, requestID)
	ctx = log.WithContext(ctx, logger)
	ctx = token.WithRequest(ctx, &token.RequestInfo{
		ID:        requestID,
		UserAgent: "tokenctl",
		Attributes: map[string]string{
			"command": cmd.Name(),
		},
	})

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Warn(ctx, "failed to release resources", "error", err)
		}
	}()

	if err := fn(ctx, a); err != nil {
		ec := apperrors.NewErrorContext(ctx).WithComponent("tokenctl").WithOperation(cmd.Name())
		apperrors.LogError(ctx, logger, err, cmd.Name()+" failed", ec)
		return err
	}
	return nil
}

func newIssueCmd(opts *globalOptions) *cobra.Command {
	var (
		user   string
		claims []string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create a token for a user",
		Example: `  tokenctl issue --user alice
  tokenctl issue --user alice --claim role=admin --claim team=infra`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, err := parseIdentity(user, claims)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				tok, err := a.Issue(ctx, identity)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "username to issue the token for")
	cmd.Flags().StringArrayVar(&claims, "claim", nil, "extra identity attribute as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// parseIdentity builds the identity fragment for user. Claim values that
// parse as JSON keep their type; anything else is a string.
func parseIdentity(user string, claims []string) (token.Identity, error) {
	identity := token.Identity{token.DefaultIdentityField: user}
	for _, claim := range claims {
		key, value, ok := strings.Cut(claim, "=")
		if !ok || key == "" {
			return nil, apperrors.NewValidationError("invalid claim", fmt.Sprintf("expected key=value, got %q", claim))
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			identity[key] = parsed
		} else {
			identity[key] = value
		}
	}
	return identity, nil
}

func newDecodeCmd(opts *globalOptions) *cobra.Command {
	var header bool

	cmd := &cobra.Command{
		Use:   "decode TOKEN",
		Short: "Decode a token and print its payload",
		Long: `Decode a token and print its payload as JSON. Use "-" to read the token
from standard input. The command exits with status 2 when the token is
invalid or rejected by a hook.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(cmd, args[0], header)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				payload, err := a.Decode(ctx, raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), payload)
			})
		},
	}

	cmd.Flags().BoolVar(&header, "header", false, `treat the argument as an Authorization header ("Bearer <token>")`)
	return cmd
}

func newRevokeCmd(opts *globalOptions) *cobra.Command {
	var header bool

	cmd := &cobra.Command{
		Use:   "revoke TOKEN",
		Short: "Revoke a token until it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(cmd, args[0], header)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				payload, err := a.Revoke(ctx, raw)
				if err != nil {
					return err
				}
				jti, _ := payload.String(token.ClaimTokenID)
				exp, _ := payload.ExpiresAt()
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s until %s\n", jti, exp.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&header, "header", false, `treat the argument as an Authorization header ("Bearer <token>")`)
	return cmd
}

func newPurgeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove revocation entries for expired tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				n, err := a.Purge(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
				return nil
			})
		},
	}
}

func readToken(cmd *cobra.Command, arg string, header bool) (string, error) {
	if arg == "-" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		arg = strings.TrimSpace(line)
	}
	if header {
		cred, err := token.BearerCredential(arg)
		if err != nil {
			return "", err
		}
		return cred.Credentials(), nil
	}
	if arg == "" {
		return "", apperrors.NewValidationError("token is empty")
	}
	return arg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
