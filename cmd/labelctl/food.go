package main

import (
	"github.com/spf13/cobra"

	"unlabel/backend/internal/food"
)

func foodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "food",
		Short: "Query the Open Food Facts catalogue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search products by keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			products, err := food.NewClient(svc.cfg.Food.ClientConfig()).Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), products)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "product <barcode>",
		Short: "Fetch one product by barcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			product, err := food.NewClient(svc.cfg.Food.ClientConfig()).Product(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), product)
		},
	})
	return cmd
}
