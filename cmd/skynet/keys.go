package main

import (
	"github.com/skynetlabs/skynet/keys"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "`keys` generates and derives Ed25519 key pairs",
	}

	var (
		seed   string
		output string
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "`generate` prints a key pair, random unless --seed is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed != "" {
				return printResult(cmd.OutOrStdout(), output, keys.KeyPairAndSeed{
					KeyPair: keys.GenKeyPairFromSeed(seed),
					Seed:    seed,
				})
			}
			kp, err := keys.GenKeyPairAndSeed()
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), output, kp)
		},
	}
	generate.Flags().StringVar(&seed, "seed", "", "derive the key pair from this seed")
	generate.Flags().StringVarP(&output, "output", "o", "json", "output format, json or yaml")

	derive := &cobra.Command{
		Use:   "derive <master-seed> <seed>",
		Short: "`derive` prints the child seed of a master seed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(keys.DeriveChildSeed(args[0], args[1]) + "\n"))
			return err
		},
	}

	cmd.AddCommand(generate, derive)
	return cmd
}
