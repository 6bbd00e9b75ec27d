package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/config"
	"github.com/kozaktomas/cashier/internal/session"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List the shop's items",
	RunE:  runInventory,
}

func init() {
	rootCmd.AddCommand(inventoryCmd)

	inventoryCmd.Flags().Bool("json", false, "Output as JSON")
}

func runInventory(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	ctx := context.Background()

	client, err := restoreClient(ctx, cfg)
	if err != nil {
		return err
	}

	items, err := client.Inventory(ctx)
	if err != nil {
		return errors.New(apperr.Message(err, session.MsgInventoryFailed))
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("No items")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\n", item.ID, item.Name, item.Price)
	}
	return w.Flush()
}
