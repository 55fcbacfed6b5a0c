// ABOUTME: fieldsync subcommands: login, teams, warm, cache, session, check, info, wipe
// ABOUTME: Each command prints text or JSON and maps failures to exit code 1

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dmuller/fieldsync/internal/auth"
	"github.com/dmuller/fieldsync/internal/docstore"
	"github.com/dmuller/fieldsync/internal/remote"
	"github.com/dmuller/fieldsync/internal/session"
	"github.com/dmuller/fieldsync/internal/warmer"
)

type warmOutput struct {
	Success bool              `json:"success"`
	Errors  map[string]string `json:"errors,omitempty"`
	Skipped []string          `json:"skipped,omitempty"`
}

func newWarmOutput(r warmer.Result) *warmOutput {
	out := &warmOutput{Success: r.Success, Skipped: r.Skipped}
	if len(r.Errors) > 0 {
		out.Errors = make(map[string]string, len(r.Errors))
		for t, err := range r.Errors {
			out.Errors[t] = err.Error()
		}
	}
	return out
}

type loginOutput struct {
	Outcome string          `json:"outcome"`
	Path    string          `json:"path"`
	Message string          `json:"message,omitempty"`
	Session session.Session `json:"session"`
	Trace   []string        `json:"trace"`
	Warm    *warmOutput     `json:"warm,omitempty"`
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var team, rep string
	var offline bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log a representative in",
		Long: `Log a representative in for a team. The remote service is tried first;
when it is unreachable the cached users are used. A successful online login
refreshes the offline cache before the command returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				res := a.resolver.Login(ctx, auth.Request{
					TeamCode: team,
					RepCode:  rep,
					Online:   a.online(ctx, offline),
				})

				out := loginOutput{
					Outcome: res.Outcome.String(),
					Path:    res.Path,
					Message: res.Message,
					Session: res.Session,
				}
				for _, s := range res.Trace {
					out.Trace = append(out.Trace, s.String())
				}

				if res.Warming != nil {
					if !p.isJSON() {
						p.Dim("warming offline cache...")
					}
					out.Warm = newWarmOutput(<-res.Warming)
				}

				if p.isJSON() {
					if err := p.JSON(out); err != nil {
						return err
					}
				} else {
					printLogin(p, res, out.Warm)
				}

				if !res.OK() {
					return &exitError{code: 1, msg: res.Message}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&team, "team", "t", "", "team code")
	cmd.Flags().StringVarP(&rep, "rep", "r", "", "representative code")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the remote and use cached data only")

	return cmd
}

func printLogin(p *printer, res auth.Result, warm *warmOutput) {
	if !res.OK() {
		p.Fail("%s", res.Message)
		return
	}
	name := res.Session.RepName
	if name == "" {
		name = res.Session.RepCode
	}
	p.OK("logged in as %s (team %s, %s)", name, res.Session.TeamCode, res.Path)
	if warm == nil {
		return
	}
	if warm.Success {
		p.OK("offline cache ready")
		return
	}
	for table, msg := range warm.Errors {
		p.Warn("could not cache %s: %s", table, msg)
	}
}

func newTeamsCommand(opts *rootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				teams, cached, err := a.resolver.Teams(ctx, a.online(ctx, offline))
				if err != nil {
					return err
				}

				if p.isJSON() {
					return p.JSON(map[string]any{"teams": teams, "cached": cached})
				}
				if len(teams) == 0 {
					p.Warn("no teams available")
					return nil
				}
				for _, t := range teams {
					p.Line("%s  %s", color.CyanString("%6s", t.Code), t.Name)
				}
				if cached {
					p.Dim("(from offline cache)")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "read the cached team list only")
	return cmd
}

func newWarmCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warm [tables...]",
		Short: "Copy remote tables into the offline cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				if !a.online(ctx, false) {
					return &exitError{code: 1, msg: "offline"}
				}

				tables := args
				if len(tables) == 0 {
					tables = a.cfg.Warmer.Tables
				}
				res := a.warmer.Prepare(ctx, tables)

				if p.isJSON() {
					if err := p.JSON(newWarmOutput(res)); err != nil {
						return err
					}
				} else {
					for _, t := range res.Failed() {
						p.Fail("%s: %v", t, res.Errors[t])
					}
					if res.Success {
						p.OK("offline cache ready")
					}
				}

				if !res.Success {
					return &exitError{code: 1, msg: "warm failed"}
				}
				return nil
			})
		},
	}
}

func newCacheCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the offline table cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <table>",
		Short: "Print the cached rows of a table as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				rows, ok, err := a.cache.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return &exitError{code: 1, msg: fmt.Sprintf("%s is not cached", args[0])}
				}
				return p.JSON(rows)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List cached tables and their row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				counts := map[string]int{}
				for _, t := range a.cache.Tables(ctx) {
					rows, _, err := a.cache.Get(ctx, t)
					if err != nil {
						counts[t] = -1
						continue
					}
					counts[t] = len(rows)
				}

				if p.isJSON() {
					return p.JSON(counts)
				}
				if len(counts) == 0 {
					p.Warn("offline cache is empty")
					return nil
				}
				for _, t := range a.cache.Tables(ctx) {
					p.Status(t, counts[t])
				}
				return nil
			})
		},
	})

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear [tables...]",
		Short: "Drop cached tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name tables to clear or pass --all")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				tables := args
				if all {
					tables = a.cache.Tables(ctx)
				}
				var cleared []string
				for _, t := range tables {
					if a.cache.Clear(ctx, t) {
						cleared = append(cleared, t)
					}
				}
				if p.isJSON() {
					return p.JSON(map[string]any{"cleared": cleared})
				}
				p.OK("cleared %d table(s)", len(cleared))
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "clear every cached table")
	cmd.AddCommand(clearCmd)

	return cmd
}

func newSessionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show or clear the stored login",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				sess := a.sessions.Load(ctx)
				if p.isJSON() {
					return p.JSON(sess)
				}
				if sess.RepCode == "" {
					p.Warn("not logged in")
				} else {
					p.Status("Team", sess.TeamCode)
					p.Status("Code", sess.RepCode)
					p.Status("Name", sess.RepName)
				}
				p.Status("History", sess.History)
				if !a.kv.IsAvailable() {
					p.Warn("session storage is unavailable")
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Log out, keeping the code history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				a.sessions.Clear(ctx)
				if !p.isJSON() {
					p.OK("logged out")
				}
				return nil
			})
		},
	})

	return cmd
}

// checkTables are counted by the check command.
var checkTables = []string{"teams", "products"}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Count rows of key remote tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				if a.client == nil {
					return errNoRemote
				}

				counts := map[string]int{}
				failed := map[string]string{}
				for _, t := range checkTables {
					n, err := a.client.Count(ctx, t)
					if err != nil {
						failed[t] = err.Error()
						continue
					}
					counts[t] = n
				}

				if p.isJSON() {
					if err := p.JSON(map[string]any{"counts": counts, "errors": failed}); err != nil {
						return err
					}
				} else {
					p.Status("Remote", remote.MaskURL(a.cfg.Remote.URL))
					for _, t := range checkTables {
						if msg, ok := failed[t]; ok {
							p.Fail("%s: %s", t, msg)
							continue
						}
						p.OK("%s: %d rows", t, counts[t])
					}
				}

				if len(failed) > 0 {
					return &exitError{code: 1, msg: "check failed"}
				}
				return nil
			})
		},
	}
}

type infoOutput struct {
	Version      string         `json:"version"`
	Config       string         `json:"config"`
	Store        docstore.Info  `json:"store"`
	KVAvailable  bool           `json:"kvAvailable"`
	Remote       string         `json:"remote"`
	Key          string         `json:"key,omitempty"`
	KeyProblems  []string       `json:"keyProblems,omitempty"`
	Online       bool           `json:"online"`
	CachedTables map[string]int `json:"cachedTables"`
}

func newInfoCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show configuration and storage status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				out := infoOutput{
					Version:      version,
					Config:       a.configPath,
					Store:        a.docs.Info(ctx),
					KVAvailable:  a.kv.IsAvailable(),
					Remote:       remote.MaskURL(a.cfg.Remote.URL),
					Online:       a.online(ctx, false),
					CachedTables: map[string]int{},
				}
				if a.cfg.Remote.AnonKey != "" {
					out.Key = remote.MaskKey(a.cfg.Remote.AnonKey)
					if ki, err := remote.DescribeKey(a.cfg.Remote.AnonKey); err == nil {
						out.KeyProblems = ki.Problems(time.Now())
					}
				}
				for _, t := range a.cache.Tables(ctx) {
					rows, _, _ := a.cache.Get(ctx, t)
					out.CachedTables[t] = len(rows)
				}

				if p.isJSON() {
					return p.JSON(out)
				}

				color.New(color.FgCyan).Fprint(p.out, banner)
				p.Dim("    version: %s\n", version)
				cfgPath := out.Config
				if cfgPath == "" {
					cfgPath = "(defaults)"
				}
				p.Status("Config", cfgPath)
				p.Status("Store", fmt.Sprintf("%s %s (%d docs)", out.Store.Engine, out.Store.Path, out.Store.DocCount))
				p.Status("Session", availability(out.KVAvailable))
				remoteStatus := "not configured"
				if out.Remote != "" {
					remoteStatus = out.Remote
					if out.Online {
						remoteStatus += color.GreenString(" [online]")
					} else {
						remoteStatus += color.YellowString(" [offline]")
					}
				}
				p.Status("Remote", remoteStatus)
				if out.Key != "" {
					p.Status("Key", out.Key)
				}
				for _, prob := range out.KeyProblems {
					p.Warn("%s", prob)
				}
				p.Status("Cached", len(out.CachedTables))
				return nil
			})
		},
	}
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return color.YellowString("unavailable")
}

func newWipeCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all local data, session and history included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("wipe deletes every local record; pass --yes to confirm")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				if err := a.docs.WipeAll(ctx); err != nil {
					return fmt.Errorf("wiping document store: %w", err)
				}
				a.kv.Clear(ctx)
				if p.isJSON() {
					return p.JSON(map[string]bool{"wiped": true})
				}
				p.OK("local data wiped")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
