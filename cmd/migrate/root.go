package migrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wedeploy/zklocks/cmd/util"
	"github.com/wedeploy/zklocks/lib/locks"
)

// migrationsKey is the fixed logical key serializing schema migrations
// across all deployment workers.
const migrationsKey = "migrations"

var (
	timeoutFlag float64

	// MigrateCmd runs a schema-migration command inside the "migrations"
	// critical section, so that only one deployment worker applies
	// migrations at a time.
	MigrateCmd = &cobra.Command{
		Use:   "migrate [flags] -- command [args...]",
		Short: "Run a schema-migration command under the migrations lock",
		Long: `Run a schema-migration command while holding the fixed "migrations" lock.

When no ZooKeeper hosts are configured the command still runs, unguarded,
after printing a warning - an unprotected migration beats a blocked deploy.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMigrate,
	}
)

func init() {
	// Add connection flags shared by all locking commands
	util.SetupConnectionFlags(MigrateCmd)

	MigrateCmd.Flags().Float64Var(&timeoutFlag, "timeout", 0, "Max seconds to wait for the migrations lock (0 waits forever)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	log, err := util.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	config := util.GetClientConfig()
	if len(config.Hosts) == 0 {
		// Degrade to a pass-through rather than blocking the deploy.
		fmt.Println("warning: no ZooKeeper hosts configured - the migrations lock will not protect this migration")
		err := util.RunCommand(args)
		if code := util.ExitCode(err); code >= 0 {
			os.Exit(code)
		}
		return err
	}

	fmt.Println("migration will be serialized through the distributed migrations lock")

	manager := util.NewManager(config, log)
	lock, err := locks.New(manager, migrationsKey, config.Namespace, locks.WithLogger(log))
	if err != nil {
		return err
	}
	defer lock.Close()

	var opts []locks.CallOption
	if timeoutFlag > 0 {
		opts = append(opts, locks.WithTimeout(time.Duration(timeoutFlag*float64(time.Second))))
	}
	err = lock.Do(cmd.Context(), func(context.Context) error {
		return util.RunCommand(args)
	}, opts...)
	// Mirror the child's exit code only here, after Do has released the
	// lock and exited the connection scope.
	if code := util.ExitCode(err); code >= 0 {
		os.Exit(code)
	}
	return err
}
