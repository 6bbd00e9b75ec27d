package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var captureDir string

var rootCmd = &cobra.Command{
	Use:   "cashier",
	Short: "Point-of-sale front end for the cashier backend",
	Long: `Cashier drives a shop's point-of-sale flow against the cashier backend:
build a cart from the shop inventory, identify the customer by username or
by face, and record the transaction.

Run "cashier serve" for the session API used by the browser front end, or use
the subcommands to log in and talk to the backend directly.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save API responses for testing")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
