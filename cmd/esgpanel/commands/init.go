package commands

import (
	"github.com/dyluth/esgpanel/internal/printer"
	"github.com/dyluth/esgpanel/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit   bool
	initProject string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new esgpanel project",
	Long: `Initialize a new esgpanel project in the current directory.

Creates:
  • esgpanel.yml - Project configuration with the study defaults
  • data/raw/ - Place the World Bank exports here
  • data/processed/ - Intermediate panels written by the stages
  • results/ - Regression tables, model comparison and dashboard

Use --force to overwrite an existing esgpanel.yml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing esgpanel.yml")
	initCmd.Flags().StringVar(&initProject, "project", "default", "Run store project name")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	created, err := scaffold.Initialize(scaffold.Options{Project: initProject, Force: forceInit})
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}
	scaffold.PrintSuccess(created)
	return nil
}
