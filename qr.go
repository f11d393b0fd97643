package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"payflow/internal/model"
	"payflow/internal/payment"
)

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Print the VietQR image URL for a bank transfer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in model.BankTransferInstructions
			in.BankName, _ = cmd.Flags().GetString("bank")
			in.AccountNumber, _ = cmd.Flags().GetString("account")
			in.AccountHolder, _ = cmd.Flags().GetString("holder")
			in.Amount, _ = cmd.Flags().GetFloat64("amount")
			in.Content, _ = cmd.Flags().GetString("content")

			url := payment.QRCodeURL(in)
			if url == "" {
				return errors.New("bank and account are required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().String("bank", "", "Bank name, e.g. Vietcombank")
	cmd.Flags().String("account", "", "Account number")
	cmd.Flags().String("holder", "", "Account holder")
	cmd.Flags().Float64("amount", 0, "Amount in VND")
	cmd.Flags().String("content", "", "Transfer content")

	return cmd
}
