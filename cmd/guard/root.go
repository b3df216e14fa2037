package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wedeploy/zklocks/cmd/util"
	"github.com/wedeploy/zklocks/lib/locks"
)

// Exit code for "resource busy, try again later" (EX_TEMPFAIL).
const exitTempFail = 75

var (
	keyFlag      string
	paramFlags   []string
	blockingFlag bool
	timeoutFlag  float64

	// GuardCmd runs an arbitrary command inside a distributed critical
	// section.
	GuardCmd = &cobra.Command{
		Use:   "guard --key KEY [flags] -- command [args...]",
		Short: "Run a command while holding a distributed lock",
		Long: `Run a command while holding the distributed lock for the given key.

The key may contain placeholders ({name}) filled from --param flags. When
the lock cannot be acquired, the command is not run and zklocks exits with
code 75 (temporary failure).`,
		Args: cobra.MinimumNArgs(1),
		RunE: runGuard,
	}
)

func init() {
	// Add connection flags shared by all locking commands
	util.SetupConnectionFlags(GuardCmd)

	// Flags specific to guard
	GuardCmd.Flags().StringVar(&keyFlag, "key", "", "Key template of the lock (required)")
	GuardCmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Key template parameter as name=value (repeatable)")
	GuardCmd.Flags().BoolVar(&blockingFlag, "blocking", true, "Wait for the lock instead of failing fast")
	GuardCmd.Flags().Float64Var(&timeoutFlag, "timeout", 0, "Max seconds to wait for the lock (0 waits forever)")
	_ = GuardCmd.MarkFlagRequired("key")
}

func runGuard(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("no ZooKeeper hosts configured, set --hosts or ZKLOCKS_HOSTS")
	}

	params, err := util.ParseParams(paramFlags)
	if err != nil {
		return err
	}

	manager := util.NewManager(config, log)
	lock, err := locks.New(manager, keyFlag, config.Namespace, locks.WithLogger(log))
	if err != nil {
		return err
	}
	defer lock.Close()

	opts := []locks.CallOption{locks.WithParams(params)}
	if !blockingFlag {
		opts = append(opts, locks.NonBlocking())
	}
	if timeoutFlag > 0 {
		opts = append(opts, locks.WithTimeout(time.Duration(timeoutFlag*float64(time.Second))))
	}

	err = lock.Do(cmd.Context(), func(context.Context) error {
		return util.RunCommand(args)
	}, opts...)
	if errors.Is(err, locks.ErrLocked) || errors.Is(err, locks.ErrLockTimeout) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitTempFail)
	}
	// Mirror the child's exit code only here, after Do has released the
	// lock and exited the connection scope.
	if code := util.ExitCode(err); code >= 0 {
		os.Exit(code)
	}
	return err
}
