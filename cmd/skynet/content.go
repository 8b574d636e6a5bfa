package main

import (
	"os"
	"path/filepath"

	"github.com/skynetlabs/skynet/client"
	"github.com/spf13/cobra"
)

func newContentCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "`content` uploads and downloads files",
	}

	var output string
	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "`upload` uploads a file and prints its skylink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				res, err := c.Uploader.UploadContent(env.ctx, data, filepath.Base(args[0]))
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), output, res)
			})
		},
	}
	upload.Flags().StringVarP(&output, "output", "o", "json", "output format, json or yaml")

	var file string
	download := &cobra.Command{
		Use:   "download <skylink>",
		Short: "`download` writes the file behind a skylink to stdout or --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, root, func(env *environment, c *client.Client) error {
				content, err := c.Downloader.FetchContent(env.ctx, args[0])
				if err != nil {
					return err
				}
				if file != "" {
					return os.WriteFile(file, content.Data, 0o644)
				}
				_, err = cmd.OutOrStdout().Write(content.Data)
				return err
			})
		},
	}
	download.Flags().StringVarP(&file, "file", "f", "", "write the content to this file")

	cmd.AddCommand(upload, download)
	return cmd
}
