package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wedeploy/zklocks/cmd/guard"
	"github.com/wedeploy/zklocks/cmd/migrate"
	"github.com/wedeploy/zklocks/cmd/util"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "zklocks",
		Short: "distributed locks backed by ZooKeeper",
		Long: fmt.Sprintf(`zklocks (v%s)

Reentrant, process-aware distributed mutual-exclusion locks on top of a
ZooKeeper ensemble, for serializing commands and deployments across hosts.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of zklocks",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("zklocks v%s\n", Version)
		},
	}
)

func init() {
	// Load env files and bind the environment once for the whole command tree
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(guard.GuardCmd)
	RootCmd.AddCommand(migrate.MigrateCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
