package main

import (
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List distinct document categories in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalog(cmd, entities.MetaCategory)
	},
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List distinct case identifiers in the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalog(cmd, entities.MetaCaseID)
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(casesCmd)
}

func runCatalog(cmd *cobra.Command, key string) error {
	svc, err := buildServices(cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	values, err := svc.catalog.Distinct(cmd.Context(), key)
	if err != nil {
		return err
	}
	for _, v := range values {
		cmd.Println(v)
	}
	return nil
}
