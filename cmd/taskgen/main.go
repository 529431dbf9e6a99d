package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskgen/internal/app"
	"taskgen/internal/config"
	"taskgen/internal/engine"
	"taskgen/internal/metrics"
	"taskgen/internal/recipe"
	"taskgen/internal/repo"
	"taskgen/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "taskgen",
	Short: "Coding-task dataset generator",
	Long: `taskgen builds the packaged directories handed to assessment takers: a reference
notebook plus, for the synthetic tasks, a seeded CSV dataset, zipped for delivery.
- Tasks: coding-task-1 (notebook only), coding-task-2 (spectra), coding-task-3 (planets),
  coding-task-4 (planets with coordinates and a target planet).
- Runs: every generation is recorded in <workspace>/.taskgen with its parameters, so the
  same dataset can be regenerated and checked with 'taskgen replay'.
- Config: taskgen.yml in the workspace sets the generator defaults and paths.`,
	SilenceUsage: true,
}

func main() {
	setup()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
}

func initConfig() {
	viper.SetEnvPrefix("TASKGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/taskgen.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage taskgen.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default taskgen.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List task recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := recipe.List()
			if viper.GetBool("json") {
				return printJSON(infos)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Title", "Synthetic", "Description"})
			for _, info := range infos {
				tw.AppendRow(table.Row{info.ID, info.Title, info.Synthetic, info.Description})
			}
			tw.Render()
			return nil
		},
	}
}

type generateFlags struct {
	task     string
	seed     int64
	samples  int
	distance float64
}

func (f generateFlags) options(cmd *cobra.Command) engine.GenerateOptions {
	opts := engine.GenerateOptions{TaskID: f.task, ActorID: viper.GetString("actor-id")}
	if cmd.Flags().Changed("seed") {
		opts.Seed = &f.seed
	}
	if cmd.Flags().Changed("samples") {
		opts.NumSamples = &f.samples
	}
	if cmd.Flags().Changed("distance") {
		opts.DistanceConstraint = &f.distance
	}
	return opts
}

func (f *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.task, "task", "", "task id (coding-task-N or coding_task_N)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (default from config)")
	cmd.Flags().IntVar(&f.samples, "samples", 0, "number of samples (default from config)")
	cmd.Flags().Float64Var(&f.distance, "distance", 0, "distance constraint for placed planets (default from config)")
	_ = cmd.MarkFlagRequired("task")
}

func generateCmd() *cobra.Command {
	var f generateFlags
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and package a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				opts := f.options(cmd)
				opts.OutputDir = out
				run, err := env.Engine.Generate(ctx, opts)
				if err != nil {
					if run.ID != "" {
						return fmt.Errorf("run %s failed: %w", run.ID, err)
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(run)
				}
				fmt.Printf("run %s completed\n", run.ID)
				fmt.Printf("archive: %s\n", run.ArchivePath)
				fmt.Printf("digest:  %s\n", run.Digest)
				if run.Rows > 0 {
					fmt.Printf("rows:    %d\n", run.Rows)
				}
				if run.Shortfall > 0 {
					fmt.Printf("short by %d rows\n", run.Shortfall)
				}
				if run.Target != "" {
					fmt.Printf("target:  %s\n", run.Target)
				}
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "output directory (default <output_dir>/<run-id>)")
	return cmd
}

func previewCmd() *cobra.Command {
	var f generateFlags
	var rows int
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the first rows of a freshly generated dataset without recording it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				header, data, err := env.Engine.Preview(ctx, f.options(cmd), rows)
				if err != nil {
					return err
				}
				if header == nil {
					fmt.Println("task has no dataset")
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"header": header, "rows": data})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(toRow(header))
				for _, rec := range data {
					tw.AppendRow(toRow(rec))
				}
				tw.Render()
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&rows, "rows", 10, "rows to print")
	return cmd
}

func runsCmd() *cobra.Command {
	runs := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}
	runs.AddCommand(runsListCmd())
	runs.AddCommand(runsShowCmd())
	runs.AddCommand(runsEventsCmd())
	return runs
}

func runsListCmd() *cobra.Command {
	var f repo.RunFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if f.TaskID != "" {
					f.TaskID = recipe.NormalizeTaskID(f.TaskID)
				}
				runs, err := env.Engine.Repo.ListRuns(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Task", "Seed", "Status", "Rows", "Target", "Created"})
				for _, r := range runs {
					tw.AppendRow(table.Row{r.ID, r.TaskID, r.Seed, r.Status, r.Rows, r.Target, r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.TaskID, "task", "", "task filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum runs")
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				run, err := env.Engine.Repo.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(run)
			})
		},
	}
}

func runsEventsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				evts, err := env.Engine.Repo.LatestEvents(ctx, n, "", "run", args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Actor", "Payload"})
				for _, e := range evts {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.ActorID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func replayCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Regenerate a run from its recorded parameters and compare digests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				res, err := env.Engine.Replay(ctx, args[0], out, viper.GetString("actor-id"))
				if err != nil && !errors.Is(err, engine.ErrReplayMismatch) {
					return err
				}
				if viper.GetBool("json") {
					if perr := printJSON(res); perr != nil {
						return perr
					}
					return err
				}
				fmt.Printf("replay %s of %s\n", res.Run.ID, res.Original.ID)
				fmt.Printf("expected: %s\n", res.Original.Digest)
				fmt.Printf("got:      %s\n", res.Run.Digest)
				if err != nil {
					return err
				}
				fmt.Println("digests match")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output directory for the regenerated task")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.NewLogger(os.Stderr, viper.GetString("log-level"))
			env, err := app.Open(cmd.Context(), viper.GetString("workspace"), app.Options{
				ConfigPath: viper.GetString("config"),
				Logger:     logger,
				Metrics:    metrics.New(),
			})
			if err != nil {
				return err
			}
			defer env.Close()
			if !cmd.Flags().Changed("addr") && env.Config.Server.Addr != "" {
				addr = env.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && env.Config.Server.BasePath != "" {
				basePath = env.Config.Server.BasePath
			}
			authCfg := server.AuthConfig{JWTSecret: viper.GetString("jwt-secret"), Logger: logger}
			if authCfg.JWTSecret == "" {
				logger.Warn("TASKGEN_JWT_SECRET not set; API is unauthenticated")
			}
			handler, err := server.New(server.Config{Engine: env.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhooks(cmd.Context(), env.Engine.Repo, env.Config.Webhooks, logger)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving taskgen API",
				"url", fmt.Sprintf("http://%s%s", addr, basePath),
				"openapi", basePath+"/openapi.json",
				"docs", "/docs",
				"metrics", "/metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with TASKGEN_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				subject = viper.GetString("actor-id")
			}
			token, err := server.IssueToken(viper.GetString("jwt-secret"), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (default --actor-id)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	return cmd
}

// --- helpers ---

func withEnv(ctx context.Context, fn func(context.Context, *app.Env) error) error {
	env, err := app.Open(ctx, viper.GetString("workspace"), app.Options{
		ConfigPath: viper.GetString("config"),
		Logger:     app.NewLogger(os.Stderr, viper.GetString("log-level")),
	})
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
