package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codyseavey/cardvault/internal/collection"
	"github.com/codyseavey/cardvault/internal/models"
)

type listCmd struct{}

func (listCmd) Name() string        { return "list" }
func (listCmd) Description() string { return "List cards, optionally filtered by a search query" }
func (listCmd) Usage() string       { return "list [query]" }

func (listCmd) Run(ctx context.Context, app *App, args []string) error {
	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	records := store.Search(strings.Join(args, " "))
	if len(records) == 0 {
		fmt.Fprintln(Out, "No cards found")
		return nil
	}

	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLAYER\tYEAR\tSET\tRARITY\tSTATUS\tPAID\tVALUE\tPROFIT")
	for _, c := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Player, yearText(c.Year), strings.TrimSpace(c.Brand+" "+c.Set), c.Rarity, statusText(c),
			collection.FormatMoney(c.Paid), collection.FormatMoney(c.Value), collection.FormatMoney(c.Profit()))
	}
	return w.Flush()
}

type addCmd struct{}

func (addCmd) Name() string        { return "add" }
func (addCmd) Description() string { return "Add a card to the collection" }
func (addCmd) Usage() string {
	return "add -player <name> [-team] [-year] [-brand] [-set] [-variant] [-rarity] [-condition] [-paid] [-value] [-status] [-ask] [-sold-price] [-sold-at] [-image <file>]"
}

func (addCmd) Run(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		in                models.NewCardRecord
		rarity, status    string
		ask, soldPrice    float64
		soldAt, imagePath string
	)
	fs.StringVar(&in.Player, "player", "", "player name")
	fs.StringVar(&in.Team, "team", "", "team")
	fs.IntVar(&in.Year, "year", 0, "card year")
	fs.StringVar(&in.Brand, "brand", "", "brand, e.g. Topps")
	fs.StringVar(&in.Set, "set", "", "set name")
	fs.StringVar(&in.Variant, "variant", "", "parallel or variant")
	fs.StringVar(&rarity, "rarity", string(models.RarityCommon), "Common, Rare or Ultra Rare")
	fs.StringVar(&in.Condition, "condition", models.DefaultCondition, "condition")
	fs.Float64Var(&in.Paid, "paid", 0, "amount paid")
	fs.Float64Var(&in.Value, "value", 0, "current value")
	fs.StringVar(&status, "status", string(models.StatusInCollection), "In Collection, For Sale or Sold")
	fs.Float64Var(&ask, "ask", 0, "asking price when for sale")
	fs.Float64Var(&soldPrice, "sold-price", 0, "sale price when sold")
	fs.StringVar(&soldAt, "sold-at", "", "sale date, YYYY-MM-DD")
	fs.StringVar(&imagePath, "image", "", "path to an image of the card")

	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	var ok bool
	if in.Rarity, ok = parseRarity(rarity); !ok {
		return fmt.Errorf("unknown rarity %q", rarity)
	}
	if in.Status, ok = parseStatus(status); !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	if flagSet(fs, "ask") {
		in.AskingPrice = &ask
	}
	if flagSet(fs, "sold-price") {
		in.SoldPrice = &soldPrice
	}
	if soldAt != "" {
		t, err := time.Parse(time.DateOnly, soldAt)
		if err != nil {
			return fmt.Errorf("invalid -sold-at %q: want YYYY-MM-DD", soldAt)
		}
		in.SoldAt = &t
	}
	if err := collection.ApplyFormDefaults(&in); err != nil {
		return err
	}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		in.Image = &models.ImageUpload{FileName: filepath.Base(imagePath), Data: data}
	}

	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	card, err := store.AddRecord(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Added %s (%s)\n", card.Player, card.ID)
	return nil
}

type deleteCmd struct{}

func (deleteCmd) Name() string        { return "delete" }
func (deleteCmd) Description() string { return "Delete a card by id" }
func (deleteCmd) Usage() string       { return "delete <id>" }

func (deleteCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	if err := store.DeleteRecord(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(Out, "Deleted %s\n", args[0])
	return nil
}

type compsCmd struct{}

func (compsCmd) Name() string        { return "comps" }
func (compsCmd) Description() string { return "Print sold-listing searches for a card" }
func (compsCmd) Usage() string       { return "comps <id>" }

func (compsCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	card, ok := store.Find(args[0])
	if !ok {
		return fmt.Errorf("card %s not found", args[0])
	}
	q := collection.CompsQuery(card)
	fmt.Fprintf(Out, "eBay sold: %s\n130point:  %s\n", collection.EbaySoldURL(q), collection.Point130URL(q))
	return nil
}

func init() {
	RegisterCmd(listCmd{})
	RegisterCmd(addCmd{})
	RegisterCmd(deleteCmd{})
	RegisterCmd(compsCmd{})
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// parseStatus accepts the display name in any case, with dashes or underscores for spaces.
func parseStatus(s string) (models.CardStatus, bool) {
	key := normalizeChoice(s)
	for _, st := range models.AllCardStatuses() {
		if normalizeChoice(string(st)) == key {
			return st, true
		}
	}
	return "", false
}

func parseRarity(s string) (models.CardRarity, bool) {
	key := normalizeChoice(s)
	for _, r := range []models.CardRarity{models.RarityCommon, models.RarityRare, models.RarityUltraRare} {
		if normalizeChoice(string(r)) == key {
			return r, true
		}
	}
	return "", false
}

func normalizeChoice(s string) string {
	s = strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

func yearText(y int) string {
	if y <= 0 {
		return "-"
	}
	return fmt.Sprint(y)
}

func statusText(c models.CardRecord) string {
	switch {
	case c.Status == models.StatusForSale && c.AskingPrice != nil:
		return fmt.Sprintf("%s (%s)", c.Status, collection.FormatMoney(*c.AskingPrice))
	case c.Status == models.StatusSold && c.SoldPrice != nil:
		return fmt.Sprintf("%s (%s)", c.Status, collection.FormatMoney(*c.SoldPrice))
	}
	return string(c.Status)
}
