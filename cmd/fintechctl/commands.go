package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fintech/pkg/walletclient"
)

func credentialFlags(cmd *cobra.Command, in *walletclient.Credentials) {
	cmd.Flags().StringVarP(&in.Username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&in.Password, "password", "P", "", "Password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
}

func (c *cli) registerCmd() *cobra.Command {
	in := walletclient.Credentials{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account with the starting balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.client()
			if err != nil {
				return err
			}

			id, err := svc.Register(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %s). You can log in now.\n", in.Username, id)
			return nil
		},
	}
	credentialFlags(cmd, &in)
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	in := walletclient.Credentials{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.client()
			if err != nil {
				return err
			}

			sess, err := svc.Login(cmd.Context(), in)
			if err != nil {
				return err
			}

			if err := walletclient.SaveSession(c.sessionFile, sess); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! Balance: %s\n", sess.User.Username, money(sess.User.Balance))
			return nil
		},
	}
	credentialFlags(cmd, &in)
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := walletclient.LoadSession(c.sessionFile)
			if err == nil {
				if svc, err := c.client(); err == nil {
					// the local session goes away even if the server cannot be reached
					_ = svc.Logout(cmd.Context(), sess)
				}
			}

			if err := walletclient.ClearSession(c.sessionFile); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session()
			if err != nil {
				return err
			}
			svc, err := c.client()
			if err != nil {
				return err
			}

			acc, err := svc.Me(cmd.Context(), sess)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", acc.Username, acc.ID)
			return nil
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session()
			if err != nil {
				return err
			}
			svc, err := c.client()
			if err != nil {
				return err
			}

			b, err := svc.Balance(cmd.Context(), sess)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", b.Username, money(b.Balance))
			return nil
		},
	}
}

func (c *cli) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <username> <amount>",
		Short: "Transfer money to another user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := strings.TrimSpace(args[0])
			amount, err := decimal.NewFromString(args[1])
			if err != nil || !amount.IsPositive() {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			sess, err := c.session()
			if err != nil {
				return err
			}
			svc, err := c.client()
			if err != nil {
				return err
			}

			res, err := svc.Transfer(cmd.Context(), sess, to, amount)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s. New balance: %s\n",
				money(res.Transaction.Amount), res.Transaction.ToUsername, money(res.NewBalance))
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session()
			if err != nil {
				return err
			}
			svc, err := c.client()
			if err != nil {
				return err
			}

			txs, err := svc.Transactions(cmd.Context(), sess)
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), time.Now(), txs)
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh balance and history until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.session()
			if err != nil {
				return err
			}
			svc, err := c.client()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			svc.Poll(cmd.Context(), sess, interval, func(d *walletclient.Dashboard, err error) {
				now := time.Now()
				if err != nil {
					fmt.Fprintf(out, "[%s] %s\n", now.Format("15:04:05"), userMessage(err))
					return
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", now.Format("15:04:05"), d.Balance.Username, money(d.Balance.Balance))
				printHistory(out, now, d.Transactions)
			})
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", walletclient.DefaultPollInterval, "Refresh interval")
	return cmd
}

func printHistory(out io.Writer, now time.Time, txs []*walletclient.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(out, "No transactions yet")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range txs {
		sign, dir := "-", "to"
		if t.Type == "received" {
			sign, dir = "+", "from"
		}
		fmt.Fprintf(w, "%s%s\t%s %s\t%s\n", sign, money(t.Amount), dir, t.Counterparty(), relativeTime(now, t.Date))
	}
	_ = w.Flush()
}
