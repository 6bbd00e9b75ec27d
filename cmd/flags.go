package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag unwraps a flag lookup. Flags are registered in init(), so a lookup
// error is a programming bug.
func mustFlag[T any](val T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("flag error: %v", err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(cmd.Flags().GetBool(name))
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(cmd.Flags().GetInt(name))
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(cmd.Flags().GetString(name))
}
