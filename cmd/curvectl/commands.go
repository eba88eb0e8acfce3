package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/pump-meteora/internal/bot"
	"github.com/rovshanmuradov/pump-meteora/internal/config"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
)

const solDecimals = 9

func newConfigCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create the global curve config from the curve section of the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, r *bot.Runner) error {
				res, err := r.CreateConfig(ctx, bot.CreateConfigCommand{Settings: r.Config().Curve})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Config: %s\nTransaction ID: %s\n", res.GlobalConfig, res.Signature)
				return nil
			})
		},
	}
}

func newCurveCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Launch a new token with a bonding curve",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, r *bot.Runner) error {
				res, err := r.Launch(ctx, bot.LaunchCommand{Token: r.Config().Token})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mint: %s\nBonding curve: %s\nTransaction ID: %s\n",
					res.Mint, res.BondingCurve, res.Signature)
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "token name (overrides token.name)")
	cmd.Flags().String("symbol", "", "token symbol (overrides token.symbol)")
	cmd.Flags().String("uri", "", "metadata uri (overrides token.uri)")
	return cmd
}

func newSwapCmd(opts *globalOpts) *cobra.Command {
	var (
		token  string
		amount int64
		style  int
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Buy or sell a token on its bonding curve",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, r *bot.Runner) error {
				res, err := r.Swap(ctx, bot.SwapCommand{
					Mint:        token,
					Amount:      amount,
					Style:       style,
					SlippageBps: r.Config().SlippageBps,
				})
				if err != nil {
					return err
				}
				printSwap(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&token, "token", "t", "", "token mint address")
	cmd.Flags().Int64VarP(&amount, "amount", "a", 0, "swap amount: lamports to spend (buy) or token base units to sell")
	cmd.Flags().IntVarP(&style, "style", "s", -1, "0: buy token, 1: sell token")
	cmd.Flags().Uint64("slippage", config.DefaultSlippageBps, "slippage tolerance in basis points")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("style")
	return cmd
}

// printSwap prints the quote of a completed swap. Token amounts use the
// decimals of the mint account.
func printSwap(out io.Writer, res *bot.SwapResult) {
	if res.Direction == bondingcurve.SwapBuy {
		decimals := int32(res.TokenDecimals)
		fmt.Fprintf(out, "Expected tokens: %s (minimum %s)\n",
			bondingcurve.FormatAmount(res.Quote.AmountOut, decimals),
			bondingcurve.FormatAmount(res.MinimumReceive, decimals))
	} else {
		fmt.Fprintf(out, "Expected SOL: %s (minimum %s)\n",
			bondingcurve.FormatAmount(res.Quote.AmountOut, solDecimals),
			bondingcurve.FormatAmount(res.MinimumReceive, solDecimals))
	}
	fmt.Fprintf(out, "Swap completed (%s)\nTransaction ID: %s\n", res.Direction, res.Signature)
}

func newPriceCmd(opts *globalOpts) *cobra.Command {
	var mint string
	cmd := &cobra.Command{
		Use:   "getCurrentPrice",
		Short: "Show the current curve price and migration progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, r *bot.Runner) error {
				res, err := r.CurrentPrice(ctx, bot.PriceCommand{Mint: mint})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Curve data: virtual SOL %d, virtual tokens %d, real SOL %d, real tokens %d\n",
					res.Reserves.VirtualSolReserves, res.Reserves.VirtualTokenReserves,
					res.Reserves.RealSolReserves, res.Reserves.RealTokenReserves)
				fmt.Fprintf(out, "Current Price: %s\n", res.Price.String())
				fmt.Fprintf(out, "Progress: %s%% (completed: %t, migration eligible: %t)\n",
					res.Progress.String(), res.Completed, res.MigrationEligible)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&mint, "mint", "m", "", "token mint address")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newCalculateSwapCmd(opts *globalOpts) *cobra.Command {
	var (
		mint   string
		amount int64
	)
	cmd := &cobra.Command{
		Use:   "calculateSwap",
		Short: "Quote the tokens received for a SOL amount in lamports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, r *bot.Runner) error {
				res, err := r.CalculateSwap(ctx, bot.CalculateSwapCommand{Mint: mint, Amount: amount})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !res.Computable {
					fmt.Fprintln(out, "Token Out Amount: not computable (no token liquidity)")
					return nil
				}
				fmt.Fprintf(out, "SOL after fee (%d bps): %d\n", res.FeeBps, res.Quote.AmountIn)
				fmt.Fprintf(out, "Token Out Amount: %d\n", res.Quote.AmountOut)
				if res.Quote.Clamped {
					fmt.Fprintln(out, "Real token reserves limit reached")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&mint, "mint", "m", "", "token mint address")
	cmd.Flags().Int64VarP(&amount, "amount", "a", 0, "SOL amount in lamports")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newMigrateCmd(opts *globalOpts) *cobra.Command {
	var (
		mint      string
		reconcile bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate a completed curve into a Meteora pool and lock the liquidity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, r *bot.Runner) error {
				res, err := r.Migrate(ctx, bot.MigrateCommand{
					Mint:          mint,
					LookupTable:   r.Config().LookupTable,
					ReconcileOnly: reconcile,
				})
				out := cmd.OutOrStdout()
				if res != nil && res.Reconciliation != nil {
					rec := res.Reconciliation
					fmt.Fprintf(out, "Pool: %s\nLedger state: %s (pool exists: %t, locked: %t)\n",
						rec.Addresses.Pool.Pool, rec.State, rec.PoolExists, rec.Locked)
				}
				if err != nil {
					return err
				}
				if res.Run != nil {
					fmt.Fprintf(out, "Pool: %s\n", res.Run.Plan.Addresses.Pool.Pool)
					if res.Run.AlreadyLocked {
						fmt.Fprintln(out, "Liquidity already locked, nothing to do")
					} else {
						fmt.Fprintf(out, "Transaction ID: %s\n", res.Run.Signature)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&mint, "mint", "m", "", "token mint address")
	cmd.Flags().String("lookup-table", "", "existing address lookup table to reuse")
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "only report how far a previous migration got")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}
