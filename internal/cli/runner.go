package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/idilsaglam/todochain/internal/client"
	"github.com/idilsaglam/todochain/internal/config"
	"github.com/idilsaglam/todochain/internal/keys"
	"github.com/idilsaglam/todochain/internal/ledger"
	"github.com/idilsaglam/todochain/internal/logging"
	"github.com/idilsaglam/todochain/internal/runtime"
	"github.com/idilsaglam/todochain/internal/store"
	"github.com/idilsaglam/todochain/internal/ui"
)

// Options tune where output goes. Nil writers mean the process streams.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
}

// usageError marks failures caused by how the command was invoked.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	if opt.Stdout == nil {
		opt.Stdout = os.Stdout
	}
	if opt.Stderr == nil {
		opt.Stderr = os.Stderr
	}
	ui.SetOutput(opt.Stdout, opt.Stderr)

	a := &app{opt: opt}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(opt.Stdout)
	root.SetErr(opt.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	ui.Fail(err.Error())

	var ue *usageError
	if errors.As(err, &ue) || isCobraUsage(err) {
		ui.Hint("run `todo --help` for usage")
		return 2
	}
	return 1
}

// isCobraUsage recognizes the argument errors cobra raises itself.
func isCobraUsage(err error) bool {
	msg := err.Error()
	for _, p := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "flag needs an argument", "invalid argument"} {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// globalFlags are the root flags that override configuration.
type globalFlags struct {
	configPath string
	program    string
	keypair    string
	backend    string
	storePath  string
	dsn        string
	theme      string
	logLevel   string
	logFormat  string
}

type app struct {
	opt   Options
	flags globalFlags

	cfg   *config.Config
	log   *log.Logger
	store ledger.Store
	rt    *runtime.Runtime
}

// setup loads configuration and applies the flags that were set.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}

	fl := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	override("program", &cfg.Program, a.flags.program)
	override("keypair", &cfg.KeypairPath, a.flags.keypair)
	override("store", &cfg.Store.Backend, a.flags.backend)
	override("store-path", &cfg.Store.Path, a.flags.storePath)
	override("dsn", &cfg.Store.DSN, a.flags.dsn)
	override("theme", &cfg.UI.Theme, a.flags.theme)
	override("log-level", &cfg.Log.Level, a.flags.logLevel)
	override("log-format", &cfg.Log.Format, a.flags.logFormat)

	if err := cfg.Finalize(); err != nil {
		return usageErrorf("%v", err)
	}
	if err := ui.SetTheme(cfg.UI.Theme); err != nil {
		return usageErrorf("%v", err)
	}

	a.cfg = cfg
	a.log = logging.New(a.opt.Stderr, logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Prefix: "todo",
	})
	a.log.Debug("config loaded", "store", cfg.Store.Backend, "path", cfg.Store.Path)
	return nil
}

func (a *app) runtime(ctx context.Context) (*runtime.Runtime, error) {
	if a.rt != nil {
		return a.rt, nil
	}
	programID, err := a.cfg.ProgramID()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, a.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Backend, err)
	}
	a.store = s
	a.rt = runtime.New(programID, s, a.log)
	return a.rt, nil
}

func (a *app) keypair() (*keys.Keypair, error) {
	return keys.Load(a.cfg.KeypairPath)
}

func (a *app) client(ctx context.Context) (*client.Client, error) {
	k, err := a.keypair()
	if err != nil {
		return nil, err
	}
	rt, err := a.runtime(ctx)
	if err != nil {
		return nil, err
	}
	return client.New(rt, k), nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil && a.log != nil {
		a.log.Warn("close store", "err", err)
	}
}

// receipt echoes program logs at debug level.
func (a *app) receipt(r *runtime.Receipt) {
	if r == nil {
		return
	}
	a.log.Debug("transaction", "id", r.ID, "op", r.Op, "signature", r.Signature)
}
