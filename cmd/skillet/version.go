package main

import (
	"fmt"

	"github.com/jingkaihe/skillet/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of Skillet in JSON format.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		json, err := version.Get().JSON()
		if err != nil {
			return err
		}
		fmt.Println(json)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
