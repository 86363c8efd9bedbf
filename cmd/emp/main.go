package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "empires/internal/cli"
	"empires/internal/config"
	"empires/internal/game"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.LoadCLI()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "emp",
		Short:        "Empires CLI client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newUseCmd(),
		newLogoutCmd(),
		newEmpireCmd(&apiBase),
		newCompanyCmd(&apiBase),
		newXPCmd(&apiBase),
		newFlowCmd(&apiBase),
		newCatalogCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) (*cl.Client, error) {
	session, err := cl.LoadSession()
	if err != nil {
		return nil, err
	}
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"), session.PlayerID), nil
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <player-id>",
		Short: "Select the player the CLI acts as",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := cl.SaveSession(cl.Session{PlayerID: strings.TrimSpace(args[0])}); err != nil {
				return err
			}
			color.Green("Acting as player %s", args[0])
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the selected player",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cl.ClearSession()
		},
	}
}

func newEmpireCmd(apiBase *string) *cobra.Command {
	empire := &cobra.Command{Use: "empire", Short: "Empire operations"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Found an empire for the selected player",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			e, err := client.CreateEmpire(ctx, name)
			if err != nil {
				return err
			}
			color.Green("Founded %q at level %d (%s)", e.Name, e.Level, game.LevelName(e.Level))
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "empire display name")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the empire summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			e, err := client.Empire(ctx)
			if err != nil {
				return err
			}
			printEmpire(e)
			return nil
		},
	}

	empire.AddCommand(create, show)
	return empire
}

func newCompanyCmd(apiBase *string) *cobra.Command {
	company := &cobra.Command{Use: "company", Short: "Company membership operations"}

	var industry string
	var level int32
	var revenue, value float64
	add := &cobra.Command{
		Use:   "add <company-id> <name>",
		Short: "Add a company to the empire",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			e, err := client.AddCompany(ctx, args[0], args[1], industry, level,
				creditsToMicros(revenue), creditsToMicros(value))
			if err != nil {
				return err
			}
			color.Green("Added %s; empire now %d companies across %d industries", args[1], len(e.Companies), e.IndustryCount)
			return nil
		},
	}
	add.Flags().StringVar(&industry, "industry", "", "industry tag (banking, technology, ...)")
	add.Flags().Int32Var(&level, "level", 1, "company level")
	add.Flags().Float64Var(&revenue, "revenue", 0, "monthly revenue in credits")
	add.Flags().Float64Var(&value, "value", 0, "company value in credits")
	_ = add.MarkFlagRequired("industry")

	remove := &cobra.Command{
		Use:   "remove <company-id>",
		Short: "Remove a company from the empire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			e, err := client.RemoveCompany(ctx, args[0])
			if err != nil {
				return err
			}
			color.Yellow("Removed %s; %d companies remain", args[0], len(e.Companies))
			return nil
		},
	}

	hq := &cobra.Command{
		Use:   "hq <company-id>",
		Short: "Move the headquarters flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			if _, err := client.SetHeadquarters(ctx, args[0]); err != nil {
				return err
			}
			color.Green("Headquarters moved to %s", args[0])
			return nil
		},
	}

	company.AddCommand(add, remove, hq)
	return company
}

func newXPCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "xp <amount>",
		Short: "Award XP to the empire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount int64
			if _, err := fmt.Sscanf(args[0], "%d", &amount); err != nil {
				return fmt.Errorf("amount must be an integer: %w", err)
			}
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := client.AddXP(ctx, amount)
			if err != nil {
				return err
			}
			if out.LeveledUp {
				color.Green("Level up! Now level %d (%s) with %d XP", out.Level, out.LevelName, out.XP)
			} else {
				fmt.Printf("XP now %d; level %d (%s)\n", out.XP, out.Level, out.LevelName)
			}
			return nil
		},
	}
}

func newFlowCmd(apiBase *string) *cobra.Command {
	flow := &cobra.Command{Use: "flow", Short: "Resource flow operations"}

	var resource, frequency string
	var qty int64
	var price float64
	create := &cobra.Command{
		Use:   "create <source-company-id> <dest-company-id>",
		Short: "Schedule a resource flow between two owned companies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			f, err := client.CreateFlow(ctx, args[0], args[1], resource, frequency, qty, creditsToMicros(price))
			if err != nil {
				return err
			}
			color.Green("Flow %s scheduled (%s, %s)", f.ID, f.Resource, f.Frequency)
			return nil
		},
	}
	create.Flags().StringVar(&resource, "resource", "", "resource kind (capital, energy, ...)")
	create.Flags().StringVar(&frequency, "frequency", "monthly", "once, daily, weekly or monthly")
	create.Flags().Int64Var(&qty, "quantity", 1, "units per transfer")
	create.Flags().Float64Var(&price, "price", 0, "price per unit in credits (0 for pure-internal)")
	_ = create.MarkFlagRequired("resource")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the player's flows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			flows, err := client.ListFlows(ctx)
			if err != nil {
				return err
			}
			for _, f := range flows {
				printFlow(f)
			}
			if len(flows) == 0 {
				fmt.Println("no flows")
			}
			return nil
		},
	}

	var marketPrice float64
	savings := &cobra.Command{
		Use:   "savings <flow-id>",
		Short: "Show savings versus buying at a market price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			view, err := client.FlowSavings(ctx, args[0], creditsToMicros(marketPrice))
			if err != nil {
				return err
			}
			fmt.Printf("market %.2f/unit vs internal %.2f/unit: saving %.2f per transfer\n",
				microsToCredits(view.MarketPriceMicros),
				microsToCredits(view.PricePerUnitMicros),
				microsToCredits(view.SavingsMicros))
			return nil
		},
	}
	savings.Flags().Float64Var(&marketPrice, "market-price", 0, "external market price per unit in credits")
	_ = savings.MarkFlagRequired("market-price")

	flow.AddCommand(create, list, savings)
	for _, action := range []string{"pause", "resume", "cancel"} {
		action := action
		flow.AddCommand(&cobra.Command{
			Use:   action + " <flow-id>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " a flow",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := newClient(apiBase)
				if err != nil {
					return err
				}
				ctx, cancel := cmdContext(cmd)
				defer cancel()
				f, err := client.FlowAction(ctx, args[0], action)
				if err != nil {
					return err
				}
				color.Yellow("Flow %s is now %s", f.ID, f.Status)
				return nil
			},
		})
	}
	return flow
}

func newCatalogCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the synergy catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, _ := cl.LoadSession()
			client := cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"), session.PlayerID)
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			defs, err := client.Catalog(ctx)
			if err != nil {
				return err
			}
			for _, def := range defs {
				inds := make([]string, len(def.Industries))
				for i, ind := range def.Industries {
					inds[i] = string(ind)
				}
				fmt.Printf("[T%d] %-18s %s\n", def.Tier, def.Name, strings.Join(inds, " + "))
			}
			return nil
		},
	}
}

func printEmpire(e *game.Empire) {
	bold := color.New(color.Bold)
	bold.Printf("%s — level %d (%s), %d XP, multiplier %.2fx\n",
		e.Name, e.Level, game.LevelName(e.Level), e.XP, float64(e.MultiplierBps)/10_000)
	fmt.Printf("value %.2f, revenue %.2f/mo, expenses %.2f/mo, %d industries\n",
		microsToCredits(e.TotalValueMicros),
		microsToCredits(e.MonthlyRevenueMicros),
		microsToCredits(e.MonthlyExpensesMicros),
		e.IndustryCount)
	for _, c := range e.Companies {
		marker := " "
		if c.Headquarters {
			marker = "*"
		}
		fmt.Printf(" %s %-10s %-20s %-13s value %.2f\n", marker, c.ID, c.Name, c.Industry, microsToCredits(c.ValueMicros))
	}
	for _, s := range e.Synergies {
		color.Cyan(" synergy [T%d] %s (%d contributors)", s.Tier, s.Name, len(s.CompanyIDs))
	}
}

func printFlow(f *game.Flow) {
	next := "-"
	if f.NextRunAt != nil {
		next = f.NextRunAt.Format(time.RFC3339)
	}
	fmt.Printf("%s  %-9s %-8s %s -> %s  qty %d  runs %d  next %s\n",
		f.ID, f.Status, f.Resource, f.Source.CompanyID, f.Dest.CompanyID,
		f.QuantityUnits, f.TransferCount, next)
}

func creditsToMicros(v float64) int64 {
	return int64(v * float64(game.MicrosPerCredit))
}

func microsToCredits(v int64) float64 {
	return float64(v) / float64(game.MicrosPerCredit)
}
