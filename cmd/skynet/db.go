package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/skynetlabs/skynet/client"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skydb"
	"github.com/spf13/cobra"
)

// dbValueOutput is a SkyDB value as printed by the CLI.
type dbValueOutput struct {
	Data     json.RawMessage `json:"data"`
	DataLink string          `json:"dataLink,omitempty"`
}

func newDBCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "`db` reads and writes SkyDB values",
	}
	cmd.AddCommand(
		newDBGetCmd(root),
		newDBSetCmd(root),
		newDBDeleteCmd(root),
		newDBLinkCmd(root),
	)
	return cmd
}

// dbFlags are shared by every db subcommand.
type dbFlags struct {
	hashed    bool
	entryData bool
}

func (f *dbFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.hashed, "hashed", false, "the data key is already hashed and hex encoded")
	cmd.Flags().BoolVar(&f.entryData, "entry-data", false, "operate on raw hex entry data instead of JSON")
}

// entryOptions returns the configured defaults overridden by the flags.
func (f *dbFlags) entryOptions(env *environment) (skydb.EntryOptions, error) {
	opts, err := env.entryOptions()
	if err != nil {
		return opts, err
	}
	if f.hashed {
		opts.HashedDataKeyHex = true
	}
	return opts, nil
}

func newDBGetCmd(root *rootOptions) *cobra.Command {
	var (
		flags          dbFlags
		raw            bool
		cachedDataLink string
	)
	cmd := &cobra.Command{
		Use:   "get <public-key> <data-key>",
		Short: "`get` prints the value owned by a public key under a data key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				opts, err := flags.entryOptions(env)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				switch {
				case flags.entryData:
					resp, err := c.DB.GetEntryData(env.ctx, args[0], args[1], opts)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, hex.EncodeToString(resp.Data))
					return err
				case raw:
					resp, err := c.DB.GetRawBytes(env.ctx, args[0], args[1], opts)
					if err != nil {
						return err
					}
					_, err = out.Write(resp.Data)
					return err
				}

				resp, err := c.DB.GetJSON(env.ctx, args[0], args[1], skydb.GetJSONOptions{
					EntryOptions:   opts,
					CachedDataLink: cachedDataLink,
				})
				if err != nil {
					return err
				}
				data := resp.Data
				if data == nil {
					data = json.RawMessage("null")
				}
				return printResult(out, "json", dbValueOutput{Data: data, DataLink: resp.DataLink})
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "print the bytes behind the entry's skylink as they are")
	cmd.Flags().StringVar(&cachedDataLink, "cached-data-link", "", "skip the download when the entry still points at this skylink")
	cmd.MarkFlagsMutuallyExclusive("raw", "entry-data")
	return cmd
}

func newDBSetCmd(root *rootOptions) *cobra.Command {
	var (
		flags        dbFlags
		signer       signerFlags
		dataLink     bool
		allowDeleted bool
	)
	cmd := &cobra.Command{
		Use:   "set <data-key> <value>",
		Short: "`set` writes a value; a value of - is read from stdin",
		Long: "`set` writes a value. By default the value is a JSON document that is " +
			"uploaded and linked from the entry. With --entry-data the value is hex " +
			"encoded bytes stored in the entry itself, with --data-link it is a skylink.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := signer.keyPair()
			if err != nil {
				return err
			}
			value := []byte(args[1])
			if args[1] == "-" {
				if value, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				opts, err := flags.entryOptions(env)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				switch {
				case flags.entryData:
					data, err := hex.DecodeString(strings.TrimSpace(string(value)))
					if err != nil {
						return errcode.ErrorCodeInvalidArgument.WithArgs("value", err.Error())
					}
					if _, err := c.DB.SetEntryData(env.ctx, kp.PrivateKey, args[0], data, skydb.SetEntryDataOptions{
						EntryOptions:           opts,
						AllowDeletionEntryData: allowDeleted,
					}); err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, kp.PublicKey)
					return err
				case dataLink:
					if err := c.DB.SetDataLink(env.ctx, kp.PrivateKey, args[0], strings.TrimSpace(string(value)), opts); err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, kp.PublicKey)
					return err
				}

				if !json.Valid(value) {
					return errcode.ErrorCodeInvalidArgument.WithArgs("value", "expected a JSON document")
				}
				resp, err := c.DB.SetJSON(env.ctx, kp.PrivateKey, args[0], json.RawMessage(value), opts)
				if err != nil {
					return err
				}
				return printResult(out, "json", dbValueOutput{Data: resp.Data, DataLink: resp.DataLink})
			})
		},
	}
	flags.register(cmd)
	signer.register(cmd)
	cmd.Flags().BoolVar(&dataLink, "data-link", false, "the value is a skylink stored in the entry")
	cmd.Flags().BoolVar(&allowDeleted, "allow-deletion-entry-data", false, "permit writing the deletion marker as entry data")
	cmd.MarkFlagsMutuallyExclusive("data-link", "entry-data")
	return cmd
}

func newDBDeleteCmd(root *rootOptions) *cobra.Command {
	var (
		flags  dbFlags
		signer signerFlags
	)
	cmd := &cobra.Command{
		Use:   "delete <data-key>",
		Short: "`delete` marks a value as deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := signer.keyPair()
			if err != nil {
				return err
			}
			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				opts, err := flags.entryOptions(env)
				if err != nil {
					return err
				}
				if flags.entryData {
					return c.DB.DeleteEntryData(env.ctx, kp.PrivateKey, args[0], opts)
				}
				return c.DB.DeleteJSON(env.ctx, kp.PrivateKey, args[0], opts)
			})
		},
	}
	flags.register(cmd)
	signer.register(cmd)
	return cmd
}

func newDBLinkCmd(root *rootOptions) *cobra.Command {
	var hashed bool
	cmd := &cobra.Command{
		Use:   "link <public-key> <data-key>",
		Short: "`link` prints the v2 skylink that resolves to an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				link, err := c.DB.GetEntryLink(args[0], args[1], skydb.EntryOptions{HashedDataKeyHex: hashed})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), link)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&hashed, "hashed", false, "the data key is already hashed and hex encoded")
	return cmd
}
