package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/dashboard"
	"budgetbuddy/internal/edit"
	gsheet "budgetbuddy/internal/sheets/google"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "budget",
		Short:         "Track income and expenses against your BudgetBuddy account",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load before reading configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL or warn")

	root.AddCommand(
		newLoginCmd(opts),
		newSignupCmd(opts),
		newLogoutCmd(opts),
		newListCmd(opts),
		newSummaryCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newExportCmd(opts),
		newWatchCmd(opts),
		newSheetsAuthCmd(opts),
	)
	return root
}

// run wires the app for one command, runs fn under a context cancelled on
// interrupt, and tears the app down afterwards.
func (o *rootOptions) run(cmd *cobra.Command, load bool, fn func(ctx context.Context, a *app) error) error {
	a, err := bootstrap(cmd.Context(), o.envFile, o.logLevel, load)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := cli.SignalContext(cmd.Context(), a.log)
	defer cancel()
	return fn(ctx, a)
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the credential for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			return opts.run(cmd, false, func(ctx context.Context, a *app) error {
				if err := a.tracker.Login(ctx, email, pw); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d transactions)\n", accountName(a, email), a.tracker.Store.Len())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password; read from stdin when omitted")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd(opts *rootOptions) *cobra.Command {
	var email, password, invite string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			return opts.run(cmd, false, func(ctx context.Context, a *app) error {
				if _, err := a.tracker.Session.Signup(ctx, email, pw, invite); err != nil {
					return err
				}
				if err := a.tracker.Store.Load(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account created, logged in as %s\n", accountName(a, email))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password; read from stdin when omitted")
	cmd.Flags().StringVar(&invite, "invite", "", "Invite code")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, false, func(ctx context.Context, a *app) error {
				if err := a.tracker.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := dashboard.ParseMonth(month)
			if err != nil {
				return err
			}
			return opts.run(cmd, true, func(_ context.Context, a *app) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				view := a.tracker.Dashboard.View(m)
				if view.Err != nil {
					return view.Err
				}
				out := cmd.OutOrStdout()
				return printTransactions(out, view.Transactions, isTerminal(out))
			})
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "Only show this month (YYYY-MM)")
	return cmd
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expenses, balance and spending per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := dashboard.ParseMonth(month)
			if err != nil {
				return err
			}
			return opts.run(cmd, true, func(_ context.Context, a *app) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				view := a.tracker.Dashboard.View(m)
				if view.Err != nil {
					return view.Err
				}
				return printView(cmd.OutOrStdout(), view)
			})
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "Only summarize this month (YYYY-MM)")
	return cmd
}

// draftFlags are the form fields shared by add and edit.
type draftFlags struct {
	amount, typ, category, note, date string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "Amount, e.g. 12.50")
	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "INCOME or EXPENSE (new entries default to INCOME)")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Category")
	cmd.Flags().StringVarP(&f.note, "note", "n", "", "Optional note")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "Date (YYYY-MM-DD)")
}

// apply copies the flags the user set onto the draft.
func (f *draftFlags) apply(cmd *cobra.Command, d *edit.Draft) {
	set := func(name, value string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst = value
		}
	}
	set("amount", f.amount, &d.Amount)
	set("category", f.category, &d.Category)
	set("note", f.note, &d.Note)
	set("date", f.date, &d.Date)
	if cmd.Flags().Changed("type") {
		d.Type = core.TransactionType(f.typ)
	}
}

// seed fills a fresh draft: today's date plus whatever flags were set. The
// type stays at the draft default unless --type is given.
func (f *draftFlags) seed(cmd *cobra.Command, d *edit.Draft, now time.Time) {
	d.Date = now.Format(core.DateLayout)
	f.apply(cmd, d)
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				editor := a.tracker.Editor
				if err := editor.Compose(); err != nil {
					return err
				}
				err := editor.Update(func(d *edit.Draft) {
					flags.seed(cmd, d, time.Now())
				})
				if err != nil {
					return err
				}
				tx, err := editor.Submit(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", describe(tx))
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				editor := a.tracker.Editor
				if err := editor.Edit(core.ID(args[0])); err != nil {
					return err
				}
				if err := editor.Update(func(d *edit.Draft) { flags.apply(cmd, d) }); err != nil {
					return err
				}
				tx, err := editor.Submit(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", describe(tx))
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				id := core.ID(args[0])
				if err := a.tracker.Store.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions and their summary to the configured spreadsheet",
		Long: "Write transactions and their summary to the spreadsheet named by GOOGLE_SPREADSHEET_ID.\n" +
			"Without a spreadsheet the rows are printed instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := dashboard.ParseMonth(month)
			if err != nil {
				return err
			}
			return opts.run(cmd, true, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(); err != nil {
					return err
				}
				report, err := a.tracker.Export(ctx, m)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.res.Preview != nil {
					return printRows(out, a.res.Preview.Transactions(), a.res.Preview.Summary())
				}
				fmt.Fprintf(out, "Exported %d transactions (%s)\n", len(report.Transactions), report.Label)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "Only export this month (YYYY-MM)")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow changes published by other sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, false, func(ctx context.Context, a *app) error {
				if a.res.Publisher == nil {
					return errNoFeed
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Watching for changes, press Ctrl+C to stop")
				err := a.res.Publisher.Watch(ctx, func(evt *amqp.TransactionEvent) error {
					fmt.Fprintln(out, describeEvent(evt, time.Now()))
					return nil
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

func newSheetsAuthCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize export to your own Google spreadsheet",
		Long: "Run the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_FILE and store the\n" +
			"token in GOOGLE_OAUTH_TOKEN_FILE. Register http://localhost:<OAUTH_REDIRECT_PORT>/callback\n" +
			"as a redirect URI on the client first.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cli.LoadEnvFile(opts.envFile); err != nil {
				return err
			}
			logger := cli.SetupLogger(cmd.ErrOrStderr(), firstNonEmpty(opts.logLevel, "warn"))
			cfg, err := cli.LoadAndValidateConfig(logger)
			if err != nil {
				return err
			}
			oauthCfg, err := gsheet.OAuthConfig(gsheet.OAuthOptions{
				ClientJSON: cfg.GoogleOAuthClientJSON,
				ClientFile: cfg.GoogleOAuthClientFile,
			})
			if err != nil {
				return err
			}

			ctx, cancel := cli.SignalContext(cmd.Context(), logger)
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
			defer cancelTimeout()

			out := cmd.OutOrStdout()
			tok, err := gsheet.Authorize(ctx, oauthCfg, cfg.OAuthRedirectPort, func(url string) {
				fmt.Fprintf(out, "Open this URL to authorize:\n%s\n", url)
			}, logger)
			if err != nil {
				return err
			}
			if err := gsheet.SaveToken(cfg.GoogleOAuthTokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved token to %s\n", cfg.GoogleOAuthTokenFile)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for consent")
	return cmd
}

// passwordOrPrompt reads the password from stdin when no flag was given, so
// it stays out of shell history.
func passwordOrPrompt(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if isTerminal(cmd.OutOrStdout()) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func accountName(a *app, fallback string) string {
	if claims, ok := a.tracker.Session.Claims(); ok && claims.Email != "" {
		return claims.Email
	}
	return fallback
}
