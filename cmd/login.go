package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/config"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as a shop operator",
	Long: `Log in to the cashier backend and persist the operator token in the
configured token store (TOKEN_STORE). The password is read from --password
or the CASHIER_PASSWORD environment variable.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the persisted operator token",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().String("shop", "", "Shop nickname")
	loginCmd.Flags().String("account", "", "Operator account name")
	loginCmd.Flags().String("password", "", "Operator password (or CASHIER_PASSWORD)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	shop := mustGetString(cmd, "shop")
	account := mustGetString(cmd, "account")
	password := mustGetString(cmd, "password")
	if password == "" {
		password = os.Getenv("CASHIER_PASSWORD")
	}
	if shop == "" || account == "" || password == "" {
		return errors.New("--shop, --account and a password are required")
	}

	cfg := config.Load()
	ctx := context.Background()

	ctrl, store, err := openSession(ctx, cfg, logging.New(cfg.LogLevel), nil)
	if err != nil {
		return err
	}
	defer store.Close()

	err = ctrl.Login(ctx, backend.Credentials{Shop: shop, Account: account, Password: password})
	if err != nil {
		return errors.New(apperr.Message(err, session.MsgLoginFailed))
	}

	fmt.Printf("Logged in as %s at %s\n", account, shop)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	ctrl, store, err := openSession(ctx, cfg, logging.New(cfg.LogLevel), nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ctrl.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}
