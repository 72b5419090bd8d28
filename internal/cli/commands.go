package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/todochain/internal/address"
	"github.com/idilsaglam/todochain/internal/config"
	"github.com/idilsaglam/todochain/internal/keys"
	"github.com/idilsaglam/todochain/internal/ledger"
	"github.com/idilsaglam/todochain/internal/program"
	"github.com/idilsaglam/todochain/internal/store"
	"github.com/idilsaglam/todochain/internal/tui"
	"github.com/idilsaglam/todochain/internal/ui"
)

const defaultAirdrop = 1_000_000_000

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("usage: todo %s", usage)
		}
		return nil
	}
}

func parseIndex(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, usageErrorf("not an index (0-255): %s", s)
	}
	return uint8(n), nil
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "todo",
		Short: "todo - a tiny on-ledger todo list",
		Long: `todo keeps a todo list as program-owned records on a local ledger.

Every change is a signed instruction; profiles and todos live at addresses
derived from your wallet, and each record's deposit is refunded on removal.`,
		Example: `  todo keygen
  todo airdrop
  todo init
  todo add "Buy milk"
  todo ls
  todo done 0
  todo rm 0`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown subcommand: %s", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return usageErrorf("missing subcommand")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (TOML)")
	pf.StringVar(&a.flags.program, "program", "", "program address (base58)")
	pf.StringVar(&a.flags.keypair, "keypair", "", "keypair file (default ~/.tada/id.json)")
	pf.StringVar(&a.flags.backend, "store", config.DefaultBackend, "ledger backend: memory, json, sqlite, postgres")
	pf.StringVar(&a.flags.storePath, "store-path", config.DefaultStorePath, "ledger file for json, database file for sqlite")
	pf.StringVar(&a.flags.dsn, "dsn", "", "postgres connection string")
	pf.StringVar(&a.flags.theme, "theme", config.DefaultTheme, "output theme: "+strings.Join(ui.ThemeNames(), ", "))
	pf.StringVar(&a.flags.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", config.DefaultLogFormat, "text, json, logfmt")

	root.AddCommand(
		a.keygenCommand(),
		a.whoamiCommand(),
		a.airdropCommand(),
		a.initCommand(),
		a.addCommand(),
		a.doneCommand(),
		a.rmCommand(),
		a.lsCommand(),
		a.showCommand(),
		a.profileCommand(),
		a.tuiCommand(),
		a.configCommand(),
		a.migrateCommand(),
	)
	return root
}

func (a *app) keygenCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a new wallet keypair",
		Args:  exactArgs(0, "keygen [--force]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keys.Generate()
			if err != nil {
				return err
			}
			path, err := keys.Save(k, a.cfg.KeypairPath, force)
			if errors.Is(err, keys.ErrExists) {
				return fmt.Errorf("%w (use --force to replace it)", err)
			}
			if err != nil {
				return err
			}
			ui.OK("wrote " + path)
			ui.Println(k.Address().String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keypair")
	return cmd
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the wallet address and balance",
		Args:  exactArgs(0, "whoami"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			bal, err := c.Balance(cmd.Context())
			if err != nil {
				return err
			}
			t := ui.Current()
			ui.Panel([]string{
				t.Muted.Render("address  ") + c.Owner().String(),
				t.Muted.Render("program  ") + c.Program().String(),
				t.Muted.Render("balance  ") + fmt.Sprintf("%d lamports", bal),
			})
			return nil
		},
	}
}

func (a *app) airdropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop [lamports]",
		Short: "Fund the wallet on the local ledger",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageErrorf("usage: todo airdrop [lamports]")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := uint64(defaultAirdrop)
			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil || n == 0 {
					return usageErrorf("airdrop: not a positive amount: %s", args[0])
				}
				amount = n
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Airdrop(cmd.Context(), amount); err != nil {
				return err
			}
			ui.OK(fmt.Sprintf("airdropped %d lamports to %s", amount, c.Owner()))
			return nil
		},
	}
}

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create your profile",
		Args:  exactArgs(0, "init"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			r, err := c.InitializeUser(cmd.Context())
			a.receipt(r)
			if err != nil {
				return err
			}
			ui.OK("profile initialized")
			return nil
		},
	}
}

func (a *app) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <content...>",
		Short: "Add a todo (content can be multiple words)",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("usage: todo add <content...>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return usageErrorf("add: empty content")
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			r, idx, err := c.AddTodo(cmd.Context(), content)
			a.receipt(r)
			if err != nil {
				return err
			}
			ui.OK(fmt.Sprintf("added #%d", idx))
			return nil
		},
	}
}

func (a *app) doneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "done <index>",
		Short: "Mark the todo at index complete",
		Args:  exactArgs(1, "done <index>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			r, err := c.MarkTodo(cmd.Context(), idx)
			a.receipt(r)
			if err != nil {
				if errors.Is(err, ledger.ErrAccountNotFound) {
					ui.Hint("run `todo ls` to see valid indexes")
				}
				return err
			}
			ui.OK(fmt.Sprintf("marked #%d", idx))
			return nil
		},
	}
}

func (a *app) rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the todo at index and reclaim its deposit",
		Args:  exactArgs(1, "rm <index>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			r, err := c.RemoveTodo(cmd.Context(), idx)
			a.receipt(r)
			if err != nil {
				if errors.Is(err, ledger.ErrAccountNotFound) {
					ui.Hint("run `todo ls` to see valid indexes")
				}
				return err
			}
			ui.OK(fmt.Sprintf("removed #%d", idx))
			return nil
		},
	}
}

func (a *app) lsCommand() *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List todos",
		Args:  exactArgs(0, "ls [--group]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			p, err := c.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("no profile for %s: run `todo init`", c.Owner())
			}
			items, err := c.Todos(cmd.Context())
			if err != nil {
				return err
			}
			ui.Panel(listLines(items, group || a.cfg.UI.Group))
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "group output by pending/done")
	return cmd
}

func (a *app) showCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <index>",
		Short: "Show one todo record",
		Args:  exactArgs(1, "show <index> [-o text|yaml|json]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			addr, nonce, err := program.TodoAddress(c.Program(), c.Owner(), idx)
			if err != nil {
				return err
			}
			item, err := c.Todo(cmd.Context(), idx)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("no todo at index %d", idx)
			}
			v, err := a.view(cmd, addr, nonce)
			if err != nil {
				return err
			}
			v.Todo = item
			return writeRecord(a.opt.Stdout, format, v)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatText, "text, yaml or json")
	return cmd
}

func (a *app) profileCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile record",
		Args:  exactArgs(0, "profile [-o text|yaml|json]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			addr, nonce, err := program.ProfileAddress(c.Program(), c.Owner())
			if err != nil {
				return err
			}
			p, err := c.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("no profile for %s: run `todo init`", c.Owner())
			}
			v, err := a.view(cmd, addr, nonce)
			if err != nil {
				return err
			}
			v.Profile = p
			return writeRecord(a.opt.Stdout, format, v)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatText, "text, yaml or json")
	return cmd
}

func (a *app) view(cmd *cobra.Command, addr address.Address, nonce uint8) (recordView, error) {
	rt, err := a.runtime(cmd.Context())
	if err != nil {
		return recordView{}, err
	}
	acct, _, err := rt.Account(cmd.Context(), addr)
	if err != nil {
		return recordView{}, err
	}
	return recordView{Address: addr.String(), Nonce: nonce, Lamports: acct.Lamports}, nil
}

func (a *app) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive list",
		Args:  exactArgs(0, "tui"),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), c)
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  exactArgs(0, "config"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Write(a.opt.Stdout)
		},
	}
}

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger table on SQL backends",
		Args:  exactArgs(0, "migrate"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.runtime(cmd.Context()); err != nil {
				return err
			}
			m, ok := a.store.(store.Migrator)
			if !ok {
				return usageErrorf("the %s backend has no schema to migrate", a.cfg.Store.Backend)
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return err
			}
			ui.OK("accounts table ready")
			return nil
		},
	}
}
