package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/skynetlabs/skynet/keys"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// printResult writes v to out in format, json or yaml.
func printResult(out io.Writer, format string, v interface{}) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		p, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = out.Write(p)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// signerFlags select the key pair a write is signed with.
type signerFlags struct {
	seed       string
	privateKey string
}

func (sf *signerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sf.seed, "seed", "", "seed the signing key pair is derived from")
	cmd.Flags().StringVar(&sf.privateKey, "private-key", "", "hex encoded private key to sign with")
	cmd.MarkFlagsMutuallyExclusive("seed", "private-key")
	cmd.MarkFlagsOneRequired("seed", "private-key")
}

// keyPair returns the selected key pair.
func (sf *signerFlags) keyPair() (keys.KeyPair, error) {
	if sf.seed != "" {
		return keys.GenKeyPairFromSeed(sf.seed), nil
	}
	publicKey, err := keys.PublicKeyFromPrivateKey(sf.privateKey)
	if err != nil {
		return keys.KeyPair{}, err
	}
	return keys.KeyPair{PublicKey: publicKey, PrivateKey: sf.privateKey}, nil
}
