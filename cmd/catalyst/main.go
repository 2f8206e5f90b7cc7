package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/catalyst/internal"
	"github.com/starford/catalyst/internal/notify"
	pkgconfig "github.com/starford/catalyst/pkg/config"
)

// newApp loads the configuration named by --config and builds the pipeline.
// A missing config file leaves the defaults in place.
func newApp(cmd *cli.Command, opts ...internal.Option) (*internal.App, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	opts = append([]internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogger(logger),
	}, opts...)
	return internal.New(opts...)
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)

	req := internal.SyncRequest{
		Root:   cmd.String("root"),
		File:   cmd.String("file"),
		Target: cmd.String("target"),
	}

	if cmd.Bool("dry-run") {
		plans, err := app.Plan(req)
		if plans != nil {
			p.plans(plans, cmd.Bool("diff"))
		}
		return err
	}

	reports, err := app.Sync(ctx, req)
	if reports != nil {
		p.reports(reports)
	}
	if err != nil {
		return err
	}
	if n := failedCount(reports); n > 0 {
		return fmt.Errorf("sync: %d notes failed", n)
	}
	return nil
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	broker := notify.NewBroker(2 * time.Second)
	defer broker.Close()

	app, err := newApp(cmd, internal.WithBroker(broker))
	if err != nil {
		return err
	}
	p := newPrinter(cmd)

	sub := broker.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for n := range sub {
			p.notification(n)
		}
	}()

	err = app.Run(ctx)
	broker.Close()
	<-printed
	return err
}

func runClassify(ctx context.Context, cmd *cli.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}

	report, err := app.Classify(ctx, internal.ClassifyRequest{
		Dir:    cmd.String("dir"),
		Apply:  cmd.Bool("apply"),
		Backup: cmd.Bool("backup"),
	})
	if report != nil {
		newPrinter(cmd).classify(report)
	}
	return err
}

func runAnalyze(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("analyze: a note path is required")
	}
	app, err := newApp(cmd)
	if err != nil {
		return err
	}

	analysis, err := app.Analyze(path)
	if err != nil {
		return err
	}
	newPrinter(cmd).analysis(path, analysis)
	return nil
}

func runStatus(_ context.Context, cmd *cli.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	newPrinter(cmd).status(app.Status())
	return nil
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	return app.MCPServer().ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:  "catalyst",
		Usage: "Classify Markdown knowledge notes and sync them into Obsidian and file vaults",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("CATALYST_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Sync notes to the enabled targets",
				Action: runSync,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "root", Usage: "Source directory (defaults to project.root)"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Sync a single note"},
					&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "Only sync to this target"},
					&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Show what would be written without writing"},
					&cli.BoolFlag{Name: "diff", Usage: "With --dry-run, print line diffs"},
				},
			},
			{
				Name:   "watch",
				Usage:  "Watch the configured paths and sync changes as they happen",
				Action: runWatch,
			},
			{
				Name:   "classify",
				Usage:  "Preview classification of notes without a header",
				Action: runClassify,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Directory to scan (defaults to project.root)"},
					&cli.BoolFlag{Name: "apply", Usage: "Write the composed header into each note"},
					&cli.BoolFlag{Name: "backup", Usage: "With --apply, keep a .backup copy of each rewritten note"},
				},
			},
			{
				Name:      "analyze",
				Usage:     "Show the metadata a note would be synced with",
				ArgsUsage: "<note.md>",
				Action:    runAnalyze,
			},
			{
				Name:   "status",
				Usage:  "Show configured paths and targets",
				Action: runStatus,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the pipeline as MCP tools over stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
