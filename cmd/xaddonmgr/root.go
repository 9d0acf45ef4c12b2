package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"xaddonmgr/internal/api"
	"xaddonmgr/pkg/classifier"
	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/db"
	"xaddonmgr/pkg/discovery"
	"xaddonmgr/pkg/geo"
	"xaddonmgr/pkg/logging"
	"xaddonmgr/pkg/manager"
	"xaddonmgr/pkg/model"
	"xaddonmgr/pkg/profile"
	"xaddonmgr/pkg/prompt"
	"xaddonmgr/pkg/store"
	"xaddonmgr/pkg/validator"
	"xaddonmgr/pkg/version"
)

const defaultConfigPath = "configs/xaddonmgr.yaml"

// app bundles the wired collaborators each command needs.
type app struct {
	cfg        *config.Config
	configDir  string
	heuristics *config.Heuristics
	profiles   *profile.Store
	manager    *manager.Manager
	audit      store.AuditStore
	cleanup    func()
}

func newApp(configPath, installRoot string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if installRoot != "" {
		cfg.InstallRoot = installRoot
	}
	if cfg.InstallRoot == "" {
		return nil, fmt.Errorf("no install root configured; set install_root in %s or pass --root", configPath)
	}

	configDir, err := config.ResolveConfigDir(cfg)
	if err != nil {
		return nil, err
	}

	logCleanup, err := logging.Init(logging.LogConfig{
		ServerPath:  cfg.Log.ServerPath,
		ServerLevel: cfg.Log.Level,
		EventsPath:  cfg.Log.EventsPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init logging: %w", err)
	}

	heuristics, err := config.LoadHeuristics(filepath.Join(configDir, "heuristics.json"))
	if err != nil {
		logCleanup()
		return nil, err
	}
	profiles, err := profile.Load(filepath.Join(configDir, "profiles.json"))
	if err != nil {
		logCleanup()
		return nil, err
	}

	var audit store.AuditStore
	database, err := db.Init(filepath.Join(configDir, "audit.db"))
	if err != nil {
		slog.Warn("audit log unavailable", "error", err)
	} else {
		if err := database.PruneOperations(time.Duration(cfg.AuditRetain)); err != nil {
			slog.Warn("failed to prune audit log", "error", err)
		}
		audit = store.NewSQLiteStore(database)
	}

	mgr := manager.New(manager.Options{
		InstallRoot:  cfg.InstallRoot,
		ConfigDir:    configDir,
		Heuristics:   heuristics,
		Profiles:     profiles,
		Audit:        audit,
		BackupRetain: cfg.BackupRetain,
	})

	return &app{
		cfg:        cfg,
		configDir:  configDir,
		heuristics: heuristics,
		profiles:   profiles,
		manager:    mgr,
		audit:      audit,
		cleanup: func() {
			if audit != nil {
				if err := audit.Close(); err != nil {
					slog.Warn("failed to close audit store", "error", err)
				}
			}
			logCleanup()
		},
	}, nil
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		installRoot string
		region      string
	)

	cmd := &cobra.Command{
		Use:           "xaddonmgr",
		Short:         "Scenery load-order manager for X-Plane installations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the app config file")
	cmd.PersistentFlags().StringVar(&installRoot, "root", "", "Simulator installation root (overrides config)")
	cmd.PersistentFlags().StringVar(&region, "region", "", "Region focus for scoring (name or lat,lon)")

	sctx := func() model.ScoreContext { return model.ScoreContext{RegionFocus: region} }

	cmd.AddCommand(newSortCmd(&configPath, &installRoot, sctx))
	cmd.AddCommand(newValidateCmd(&configPath, &installRoot, sctx))
	cmd.AddCommand(newProfileCmd(&configPath, &installRoot, sctx))
	cmd.AddCommand(newPromptCmd(&configPath, &installRoot))
	cmd.AddCommand(newHistoryCmd(&configPath, &installRoot))
	cmd.AddCommand(newServeCmd(&configPath, &installRoot))
	cmd.AddCommand(newAddonsCmd(&configPath, &installRoot))
	cmd.AddCommand(newExplainCmd(&configPath, &installRoot))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	})
	return cmd
}

// newSortCmd loads, sorts, and prints the resulting order; --save also
// writes the manifest.
func newSortCmd(configPath, installRoot *string, sctx func() model.ScoreContext) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Discover, classify, and sort the scenery load order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			ctx := cmd.Context()
			if err := a.manager.Load(ctx); err != nil {
				return fmt.Errorf("load failed: %w", err)
			}
			a.manager.Sort(ctx, sctx())

			fmt.Fprint(cmd.OutOrStdout(), renderPacks(a.manager.Packs()))

			if save {
				if err := a.manager.Save(ctx); err != nil {
					return fmt.Errorf("save failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Manifest written.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Write the sorted order to scenery_packs.ini")
	return cmd
}

func newValidateCmd(configPath, installRoot *string, sctx func() model.ScoreContext) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the sorted order for layering mistakes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			ctx := cmd.Context()
			if err := a.manager.Load(ctx); err != nil {
				return fmt.Errorf("load failed: %w", err)
			}
			a.manager.Sort(ctx, sctx())
			report := a.manager.Validate(ctx)

			fmt.Fprint(cmd.OutOrStdout(), renderReport(report))

			if fix && len(report.Issues) > 0 {
				fixed := validator.AutoFix(report, a.heuristics)
				if len(fixed) > 0 {
					if err := a.heuristics.Save(); err != nil {
						return fmt.Errorf("failed to persist overrides: %w", err)
					}
					a.manager.Sort(ctx, sctx())
					if err := a.manager.Save(ctx); err != nil {
						return fmt.Errorf("save failed: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Auto-fixed %d pack(s) and re-sorted.\n", len(fixed))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Apply the suggested fixes, re-sort, and save")
	return cmd
}

func newProfileCmd(configPath, installRoot *string, sctx func() model.ScoreContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "List and activate named configuration profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			active := a.profiles.Active()
			for _, p := range a.profiles.Profiles() {
				marker := " "
				if p.Name == active {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d scenery states, %d pins)\n",
					marker, p.Name, len(p.SceneryStates), len(p.SceneryOverrides))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate <name>",
		Short: "Activate a profile and rewrite the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			ctx := cmd.Context()
			if err := a.manager.Load(ctx); err != nil {
				return fmt.Errorf("load failed: %w", err)
			}
			if err := a.manager.ActivateProfile(ctx, args[0], sctx()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %q activated.\n", args[0])
			return nil
		},
	})

	return cmd
}

func newPromptCmd(configPath, installRoot *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <text>...",
		Short: "Interpret a free-text flight request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			in := prompt.New(a.heuristics, nil)
			text := ""
			for i, arg := range args {
				if i > 0 {
					text += " "
				}
				text += arg
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPrompt(text, in.Parse(text)))
			return nil
		},
	}
}

func newHistoryCmd(configPath, installRoot *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent manager operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			if a.audit == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Audit log unavailable.")
				return nil
			}
			ops, err := a.audit.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, op := range ops {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-18s %s\n",
					op.CreatedAt.Format("2006-01-02 15:04:05"), op.Op, op.Summary)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	return cmd
}

func newAddonsCmd(configPath, installRoot *string) *cobra.Command {
	return &cobra.Command{
		Use:   "addons",
		Short: "List installed aircraft and plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			scanner := &discovery.Scanner{}
			for _, addon := range scanner.Scan(a.cfg.InstallRoot) {
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", addon.Kind, addon.Name)
			}
			return nil
		},
	}
}

func newExplainCmd(configPath, installRoot *string) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <pack name>",
		Short: "Show how a pack name would be classified and why",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			name := strings.Join(args, " ")
			cat, reason := classifier.New(a.heuristics).Explain(name, "")
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s): %s\n", name, cat, cat.ShortCode(), reason)
			return nil
		},
	}
}

func newServeCmd(configPath, installRoot *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/WebSocket contract surface for the UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, *installRoot)
			if err != nil {
				return err
			}
			defer a.cleanup()

			events := api.NewEventHub()
			a.manager.OnSaved(events.NotifySaved)

			// Hand-edits to heuristics.json while serving take effect on the
			// next sort.
			if err := a.heuristics.Watch(func() {
				if err := a.heuristics.Reload(); err != nil {
					slog.Warn("heuristics reload failed", "error", err)
					return
				}
				slog.Info("heuristics reloaded after external edit")
			}); err != nil {
				slog.Warn("heuristics watch unavailable", "error", err)
			}
			defer a.heuristics.Close()

			handler := &api.ManagerHandler{
				Manager:     a.manager,
				Heuristics:  a.heuristics,
				Profiles:    a.profiles,
				Interpreter: prompt.New(a.heuristics, nil),
				Audit:       a.audit,
				Events:      events,
			}

			geoH := &api.GeoHandler{
				Cities:  geo.NewCityIndex(),
				Regions: geo.NewRegionIndex(),
			}

			shutdownCh := make(chan struct{})
			srv := api.NewServer(a.cfg.Server.Address, handler, geoH, events, func() {
				close(shutdownCh)
			})

			go func() {
				slog.Info("listening", "addr", a.cfg.Server.Address)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("server failed", "error", err)
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sig:
			case <-shutdownCh:
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}
