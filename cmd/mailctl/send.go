package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"CardScan/internal/client"
	"CardScan/internal/csvparser"
	"CardScan/internal/models"
)

func SendCmd(newClient func() *client.Client) *cobra.Command {
	var (
		csvPath    string
		subject    string
		body       string
		bodyFile   string
		attachment string
		signature  string
		maxRows    int
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "queue one email per recipient in a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read body file: %w", err)
				}
				body = string(data)
			}
			if subject == "" || body == "" {
				return errors.New("--subject and one of --body or --body-file are required")
			}

			recipients, err := csvparser.ParseFile(csvPath, maxRows)
			if err != nil {
				return err
			}

			c := newClient()
			ctx := cmd.Context()

			req := models.BatchRequest{
				Recipients: recipients,
				Subject:    subject,
				Body:       body,
			}

			if attachment != "" {
				a, err := c.UploadAttachment(ctx, attachment)
				if err != nil {
					return fmt.Errorf("upload attachment: %w", err)
				}
				req.AttachmentPath = a.FilePath
			}
			if signature != "" {
				a, err := c.UploadAttachment(ctx, signature)
				if err != nil {
					return fmt.Errorf("upload signature: %w", err)
				}
				req.SignaturePath = a.FilePath
			}

			receipt, err := c.SendEmails(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to queue emails: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Queued %d emails in %s\n", receipt.Count, receipt.BatchID)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file with an Email column and optional Name column")
	cmd.Flags().StringVar(&subject, "subject", "", "email subject")
	cmd.Flags().StringVar(&body, "body", "", "email body; [Recipient Name] is personalized")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "read the body from a file")
	cmd.Flags().StringVar(&attachment, "attachment", "", "local file to upload and attach")
	cmd.Flags().StringVar(&signature, "signature", "", "local signature image to upload and embed")
	cmd.Flags().IntVar(&maxRows, "max-rows", csvparser.DefaultMaxRows, "maximum recipients read from the CSV")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}
