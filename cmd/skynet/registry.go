package main

import (
	"encoding/hex"
	"fmt"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/client"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/spf13/cobra"
)

// registryEntryOutput is a registry entry as printed by the CLI.
type registryEntryOutput struct {
	Found     bool   `json:"found" yaml:"found"`
	DataKey   string `json:"datakey,omitempty" yaml:"datakey,omitempty"`
	Data      string `json:"data,omitempty" yaml:"data,omitempty"`
	Revision  uint64 `json:"revision" yaml:"revision"`
	Signature string `json:"signature,omitempty" yaml:"signature,omitempty"`
}

func newRegistryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "`registry` reads and writes raw registry entries",
	}
	cmd.AddCommand(newRegistryGetCmd(root), newRegistrySetCmd(root))
	return cmd
}

func newRegistryGetCmd(root *rootOptions) *cobra.Command {
	var (
		opts   skynet.GetEntryOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "get <public-key> <data-key>",
		Short: "`get` prints the entry owned by a public key under a data key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				signed, err := c.Registry.GetEntry(env.ctx, args[0], args[1], opts)
				if err != nil {
					return err
				}
				out := registryEntryOutput{Found: signed.Found()}
				if signed.Found() {
					out.DataKey = signed.Entry.DataKey
					out.Data = hex.EncodeToString(signed.Entry.Data)
					out.Revision = signed.Entry.Revision
					out.Signature = hex.EncodeToString(signed.Signature)
				}
				return printResult(cmd.OutOrStdout(), output, out)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.HashedDataKeyHex, "hashed", false, "the data key is already hashed and hex encoded")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", 0, "seconds the portal may spend on the lookup")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format, json or yaml")
	return cmd
}

func newRegistrySetCmd(root *rootOptions) *cobra.Command {
	var (
		signer   signerFlags
		opts     skynet.SetEntryOptions
		revision uint64
	)
	cmd := &cobra.Command{
		Use:   "set <data-key> <hex-data>",
		Short: "`set` signs and publishes an entry",
		Long: "`set` signs and publishes an entry. Without --revision the entry " +
			"is written at the revision following the current one.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(args[1])
			if err != nil {
				return errcode.ErrorCodeInvalidArgument.WithArgs("data", err.Error())
			}
			kp, err := signer.keyPair()
			if err != nil {
				return err
			}

			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				entry := skynet.RegistryEntry{DataKey: args[0], Data: data}
				if cmd.Flags().Changed("revision") {
					entry.Revision = revision
				} else {
					current, err := c.Registry.GetEntry(env.ctx, kp.PublicKey, args[0], skynet.GetEntryOptions{HashedDataKeyHex: opts.HashedDataKeyHex})
					if err != nil {
						return err
					}
					if current.Found() {
						if current.Entry.Revision == skynet.MaxRevision {
							return errcode.ErrorCodeMaxRevision.WithArgs()
						}
						entry.Revision = current.Entry.Revision + 1
					}
				}

				if err := c.Registry.SetEntry(env.ctx, kp.PrivateKey, entry, opts); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s revision %d\n", kp.PublicKey, entry.Revision)
				return err
			})
		},
	}
	signer.register(cmd)
	cmd.Flags().BoolVar(&opts.HashedDataKeyHex, "hashed", false, "the data key is already hashed and hex encoded")
	cmd.Flags().Uint64Var(&revision, "revision", 0, "revision to write instead of the next one")
	return cmd
}
