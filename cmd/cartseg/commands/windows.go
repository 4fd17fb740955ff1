package commands

import (
	"fmt"

	"cartseg/internal/store"

	"github.com/spf13/cobra"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List analysis windows with stored results",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := store.NewResultStore(cfg.StoreDir).List()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("No stored results")
			return nil
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(windowsCmd)
}
