package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphfed/supergraph-planner/server"
)

const gatewayVersion = "v0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of the supergraph gateway",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("supergraph-planner gateway " + gatewayVersion)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a gateway.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Init()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Run: func(cmd *cobra.Command, args []string) {
		server.Run()
	},
}

func main() {
	root := &cobra.Command{Use: "federation-gateway"}
	root.AddCommand(versionCmd, initCmd, serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
