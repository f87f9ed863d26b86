// version.go — команда version.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trizel/ingest-module/internal/config"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Версия Ingest Module",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("ingest-module %s\n", config.Version)
	},
}
