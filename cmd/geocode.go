package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve an address to coordinates",
	Long:  "Ad hoc Kakao address lookup, useful for checking entries the crawler could not geocode.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		address := strings.Join(args, " ")
		result, err := initGeocoder().Resolve(ctx, address)
		if err != nil {
			return err
		}
		if !result.Matched {
			fmt.Printf("no match for %q\n", address)
			return nil
		}

		fmt.Printf("lat=%f lng=%f\n", result.Lat, result.Lng)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
