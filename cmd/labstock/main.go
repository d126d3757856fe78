package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	jobscli "github.com/odyssey-erp/labstock/cmd/labstock/cli"
	"github.com/odyssey-erp/labstock/internal/app"
	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/stock"
)

// runtimeKey keys the bootstrapped runtime in the command context.
type runtimeKey struct{}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		slog.Default().Error("labstock", slog.Any("error", err))
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "labstock",
		Usage:     "Warehouse reagent and consumable stock engine",
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Before: bootstrap,
				After:  shutdown,
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the store schema",
				Before: bootstrap,
				After:  shutdown,
				Action: func(c *cli.Context) error {
					if err := runtimeFrom(c).Migrate(c.Context); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "schema up to date")
					return nil
				},
			},
			{
				Name:  "stock",
				Usage: "Compute the stock of one product in one warehouse",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "warehouse", Aliases: []string{"w"}, Required: true},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true, Usage: "reagent or consumable"},
					&cli.Int64Flag{Name: "product", Aliases: []string{"p"}, Required: true},
				},
				Before: bootstrap,
				After:  shutdown,
				Action: computeStock,
			},
			{
				Name:  "report",
				Usage: "Compute the stock of every catalog product in one warehouse",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "warehouse", Aliases: []string{"w"}, Required: true},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}},
					&cli.BoolFlag{Name: "include-empty"},
				},
				Before: bootstrap,
				After:  shutdown,
				Action: warehouseReport,
			},
			{
				Name:   "sweep",
				Usage:  "Run the stock consistency sweep in-process",
				Before: bootstrap,
				After:  shutdown,
				Action: func(c *cli.Context) error {
					issues, err := runtimeFrom(c).SweepJob.Run(c.Context, "cli")
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, issues)
				},
			},
			{
				Name:  "jobs",
				Usage: "Manage background jobs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}, Value: "127.0.0.1:6379"},
				},
				Subcommands: []*cli.Command{
					{
						Name:      "trigger",
						Usage:     "Enqueue a job now",
						ArgsUsage: "<job>",
						Action: withJobs(func(c *cli.Context, jc *jobscli.JobsCLI) error {
							name := c.Args().First()
							if name == "" {
								name = "sweep"
							}
							info, err := jc.Trigger(c.Context, name)
							if err != nil {
								return err
							}
							fmt.Fprintf(c.App.Writer, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
							return nil
						}),
					},
					{
						Name:  "stats",
						Usage: "Show queue statistics",
						Action: withJobs(func(c *cli.Context, jc *jobscli.JobsCLI) error {
							stats, err := jc.InspectQueue(c.Context)
							if err != nil {
								return err
							}
							return printJSON(c.App.Writer, stats)
						}),
					},
					{
						Name:  "scheduled",
						Usage: "List scheduled tasks",
						Flags: []cli.Flag{&cli.IntFlag{Name: "size", Value: 10}},
						Action: withJobs(func(c *cli.Context, jc *jobscli.JobsCLI) error {
							tasks, err := jc.ListScheduled(c.Context, c.Int("size"))
							if err != nil {
								return err
							}
							for _, t := range tasks {
								fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
							}
							return nil
						}),
					},
				},
			},
		},
	}
}

func bootstrap(c *cli.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	rt, err := app.Bootstrap(c.Context, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	c.Context = context.WithValue(c.Context, runtimeKey{}, rt)
	return nil
}

func shutdown(c *cli.Context) error {
	if rt, ok := c.Context.Value(runtimeKey{}).(*app.Runtime); ok && rt != nil {
		return rt.Close()
	}
	return nil
}

func runtimeFrom(c *cli.Context) *app.Runtime {
	rt, _ := c.Context.Value(runtimeKey{}).(*app.Runtime)
	return rt
}

func withJobs(fn func(*cli.Context, *jobscli.JobsCLI) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		jc, err := jobscli.NewJobsCLI(c.String("redis-addr"))
		if err != nil {
			return err
		}
		defer jc.Close()
		return fn(c, jc)
	}
}

func serve(c *cli.Context) error {
	rt := runtimeFrom(c)
	cfg, logger := rt.Config, rt.Logger

	var inspector *asynq.Inspector
	if rt.Redis != nil {
		inspector = asynq.NewInspector(rt.RedisOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      rt.Router(inspector),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}

func computeStock(c *cli.Context) error {
	category, err := ledger.ParseCategory(c.String("category"))
	if err != nil {
		return err
	}
	product := ledger.ProductRef{Category: category, ID: c.Int64("product")}
	st, err := runtimeFrom(c).Stock.ComputeStock(c.Context, c.Int64("warehouse"), product)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, st)
}

func warehouseReport(c *cli.Context) error {
	opts := stock.ReportOptions{IncludeEmpty: c.Bool("include-empty")}
	if raw := c.String("category"); raw != "" {
		category, err := ledger.ParseCategory(raw)
		if err != nil {
			return err
		}
		opts.Category = category
	}
	report, err := runtimeFrom(c).Stock.WarehouseReport(c.Context, c.Int64("warehouse"), opts)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, report)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
