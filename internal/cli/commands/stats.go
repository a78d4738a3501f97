package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codyseavey/cardvault/internal/collection"
)

type totalsCmd struct{}

func (totalsCmd) Name() string        { return "totals" }
func (totalsCmd) Description() string { return "Show collection totals" }
func (totalsCmd) Usage() string       { return "totals" }

func (totalsCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	t := store.Totals()
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Cards\t%d\n", t.TotalCards)
	fmt.Fprintf(w, "Players\t%d\n", t.UniquePlayers)
	fmt.Fprintf(w, "Invested\t%s\n", collection.FormatMoney(t.TotalInvested))
	fmt.Fprintf(w, "Value\t%s\n", collection.FormatMoney(t.CollectionValue))
	fmt.Fprintf(w, "For sale\t%d (asking %s)\n", t.ForSaleCount, collection.FormatMoney(t.ForSaleAskTotal))
	fmt.Fprintf(w, "Sold\t%d (value %s)\n", t.SoldCount, collection.FormatMoney(t.SoldValue))
	fmt.Fprintf(w, "Revenue\t%s\n", collection.FormatMoney(t.Revenue))
	fmt.Fprintf(w, "Realised profit\t%s\n", collection.FormatMoney(t.RealisedProfit))
	return w.Flush()
}

type topCmd struct{}

func (topCmd) Name() string        { return "top" }
func (topCmd) Description() string { return "Rank players by total card value" }
func (topCmd) Usage() string       { return "top [n]" }

func (topCmd) Run(ctx context.Context, app *App, args []string) error {
	n := 5
	switch len(args) {
	case 0:
	case 1:
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return ErrUsage
		}
		n = v
	default:
		return ErrUsage
	}
	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	top := store.TopPlayers(n)
	if len(top) == 0 {
		fmt.Fprintln(Out, "No cards found")
		return nil
	}
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPLAYER\tCARDS\tVALUE")
	for i, p := range top {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, p.Player, p.Cards, collection.FormatMoney(p.Value))
	}
	return w.Flush()
}

type suggestCmd struct{}

func (suggestCmd) Name() string        { return "suggest" }
func (suggestCmd) Description() string { return "Suggest player names already in the collection" }
func (suggestCmd) Usage() string       { return "suggest <query>" }

func (suggestCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	for _, name := range store.SuggestPlayers(strings.Join(args, " "), 10) {
		fmt.Fprintln(Out, name)
	}
	return nil
}

type historyCmd struct{}

func (historyCmd) Name() string        { return "history" }
func (historyCmd) Description() string { return "Show daily value snapshots (week, month, 3month, year, all)" }
func (historyCmd) Usage() string       { return "history [period]" }

func (historyCmd) Run(ctx context.Context, app *App, args []string) error {
	period := "month"
	switch len(args) {
	case 0:
	case 1:
		period = args[0]
	default:
		return ErrUsage
	}
	history, err := app.Client.ValueHistory(ctx, period)
	if err != nil {
		return err
	}
	if len(history.Snapshots) == 0 {
		fmt.Fprintln(Out, "No snapshots yet")
		return nil
	}
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCARDS\tINVESTED\tVALUE\tREVENUE")
	for _, s := range history.Snapshots {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", s.SnapshotDate.UTC().Format(time.DateOnly), s.TotalCards,
			collection.FormatMoney(s.TotalInvested), collection.FormatMoney(s.CollectionValue), collection.FormatMoney(s.Revenue))
	}
	return w.Flush()
}

type snapshotCmd struct{}

func (snapshotCmd) Name() string        { return "snapshot" }
func (snapshotCmd) Description() string { return "Record today's collection value" }
func (snapshotCmd) Usage() string       { return "snapshot" }

func (snapshotCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	snap, err := app.Client.TakeSnapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Snapshot for %s: %d cards, value %s\n",
		snap.SnapshotDate.UTC().Format(time.DateOnly), snap.TotalCards, collection.FormatMoney(snap.CollectionValue))
	return nil
}

func init() {
	RegisterCmd(totalsCmd{})
	RegisterCmd(topCmd{})
	RegisterCmd(suggestCmd{})
	RegisterCmd(historyCmd{})
	RegisterCmd(snapshotCmd{})
}
