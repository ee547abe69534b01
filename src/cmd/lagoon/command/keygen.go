package command

import (
	"fmt"

	"github.com/lagoon-network/lagoon/src/crypto"
	"github.com/lagoon-network/lagoon/src/lagoon"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new key pair in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := lagoon.Keygen(*datadir)
		if err != nil {
			return err
		}

		pem, err := crypto.ToPemKey(key)
		if err != nil {
			return err
		}

		fmt.Println("Public key:", pem.PublicKey)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
