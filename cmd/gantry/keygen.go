package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a session secret",
		Long: `Generate a random session secret and print it base64-encoded,
ready for GANTRY_SESSION_SECRET or the session.secret config key.

The size selects the AES key strength: 16 (128 bit), 24 (192 bit)
or 32 (256 bit) bytes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch size {
			case 16, 24, 32:
			default:
				return fmt.Errorf("key size must be 16, 24 or 32, got %d", size)
			}

			key := make([]byte, size)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			fmt.Println(base64.StdEncoding.EncodeToString(key))
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "size", "n", 32, "Key size in bytes (16, 24 or 32)")

	return cmd
}
