package main

import (
	"fmt"

	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of skill front-matter",
	Long: `Print the JSON schema describing the front-matter of a SKILL.md file.
Editors with YAML language support can use it for completion and validation.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := skills.MetadataSchemaJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
