package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// behaviorsCmd represents the behaviors command
var behaviorsCmd = &cobra.Command{
	Use:   "behaviors",
	Short: "List the behaviors this half can dispatch",
	RunE:  runBehaviors,
}

func runBehaviors(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	registry := newRegistry(logger)

	nameColor := color.New(color.FgCyan, color.Bold)
	for _, name := range registry.Names() {
		fmt.Fprintln(cmd.OutOrStdout(), nameColor.Sprint(name))
	}
	return nil
}
