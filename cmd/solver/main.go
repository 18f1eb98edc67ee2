package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"vrp-search-service/internal/adapters/cache"
	"vrp-search-service/internal/adapters/instance"
	"vrp-search-service/internal/adapters/output"
	"vrp-search-service/internal/adapters/repositories"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/db"
	"vrp-search-service/internal/platform/sysinfo"
	"vrp-search-service/internal/search"
	"vrp-search-service/internal/services"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	app := cli.NewApp()
	app.Name = "solver"
	app.Usage = "solve a CVRP instance with AILS-II"
	app.ArgsUsage = "<instance.vrp | instance.json | url>"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "YAML configuration file", EnvVar: "AILS_CONFIG"},
		cli.StringFlag{Name: "stopping", Usage: "Time or Iteration"},
		cli.Float64Flag{Name: "limit", Usage: "budget: CPU seconds or iterations"},
		cli.Float64Flag{Name: "best", Usage: "stop once this cost is reached"},
		cli.Int64Flag{Name: "seed", Usage: "random seed"},
		cli.BoolFlag{Name: "parallel", Usage: "run two branches per iteration"},
		cli.StringFlag{Name: "perturbations", Usage: "comma separated operators, e.g. Sequential,Concentric,Decomposition"},
		cli.StringFlag{Name: "decay", Usage: "exponential, linear, cosine, sigmoid or piecewise"},
		cli.StringFlag{Name: "selection", Usage: "random, first or roundrobin"},
		cli.BoolFlag{Name: "debug", Usage: "check solution consistency every iteration"},
		cli.BoolFlag{Name: "print", Usage: "log every iteration"},
		cli.StringFlag{Name: "solution", Usage: "write the best solution to this .sol file"},
		cli.StringFlag{Name: "samples", Usage: "write improvement samples to this CSV file"},
		cli.IntFlag{Name: "runs", Usage: "independent runs with consecutive seeds", Value: 1},
		cli.IntFlag{Name: "workers", Usage: "concurrent runs when -runs > 1", Value: 1},
		cli.StringFlag{Name: "database-url", Usage: "persist runs to this postgres:// URL or sqlite path", EnvVar: "DATABASE_URL"},
		cli.StringFlag{Name: "redis-url", Usage: "share the best plan per instance through Redis", EnvVar: "REDIS_URL"},
		cli.StringFlag{Name: "mirror", Usage: "base URL of a CVRPLIB mirror for instance names", EnvVar: "INSTANCE_MIRROR"},
	}
	app.Action = solve

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if c.IsSet("stopping") {
		cfg.StoppingCriterion = config.StoppingCriterion(c.String("stopping"))
	}
	if c.IsSet("limit") {
		cfg.Limit = c.Float64("limit")
	}
	if c.IsSet("best") {
		cfg.Optimal = c.Float64("best")
	}
	if c.IsSet("seed") {
		cfg.Seed = c.Int64("seed")
	}
	if c.IsSet("perturbations") {
		cfg.Perturbations = config.SplitList(c.String("perturbations"))
	}
	if c.IsSet("decay") {
		cfg.Decay = c.String("decay")
	}
	if c.IsSet("selection") {
		cfg.Selection = c.String("selection")
	}
	cfg.Parallel = cfg.Parallel || c.Bool("parallel")
	cfg.Debug = cfg.Debug || c.Bool("debug")
	cfg.Print = cfg.Print || c.Bool("print")

	return cfg, cfg.Validate()
}

func solve(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("exactly one instance is required", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := domain.InstanceOptions{Rounded: cfg.Rounded, KNNLimit: cfg.KNNLimit}
	source := instance.Resolver{Files: instance.FileSource{Options: opts}, HTTP: instance.NewHTTPSource(c.String("mirror"), opts)}

	host := sysinfo.Collect()
	log.Printf("host=%q", host.String())
	deps := services.RunSearchDeps{Source: source, Host: host.Hostname}

	if url := c.String("database-url"); url != "" {
		conn, err := openRunDB(url)
		if err != nil {
			return err
		}
		defer conn.Close()
		if db.Driver(url) == "pgx" {
			deps.Runs = repositories.NewPostgresRunRepository(conn)
			deps.Incumbents = cache.NewSQLIncumbentStore(conn)
		} else {
			deps.Runs = repositories.NewSqliteRunRepository(conn)
			deps.Incumbents = cache.NewSqliteIncumbentStore(conn)
		}
	}
	if url := c.String("redis-url"); url != "" {
		client, err := cache.NewRedisClient(url)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Incumbents = cache.NewRedisIncumbentStore(client, 0)
	}

	req := services.RunSearchRequest{Ref: c.Args().First(), Config: cfg}
	var files []interface{ Err() error }
	if c.Int("runs") <= 1 {
		if path := c.String("samples"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("samples: %w", err)
			}
			defer f.Close()
			w := output.NewSampleWriter(f)
			files = append(files, w)
			req.Observers = append(req.Observers, w)
		}
		if path := c.String("solution"); path != "" {
			w := &output.SolutionFile{Path: path}
			files = append(files, w)
			req.Observers = append(req.Observers, w)
		}
	}

	var results []services.RunSearchResult
	if n := c.Int("runs"); n > 1 {
		seeds := make([]int64, n)
		for i := range seeds {
			seeds[i] = cfg.Seed + int64(i)
		}
		results, err = services.RunBatch(ctx, req, seeds, c.Int("workers"), deps)
	} else {
		var out services.RunSearchResult
		out, err = services.RunSearch(ctx, req, deps)
		results = append(results, out)
	}
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := f.Err(); err != nil {
			log.Printf("output: %v", err)
		}
	}
	for _, r := range results {
		report(r.Run, r.Result)
	}
	if cpu, err := sysinfo.ProcessCPU(); err == nil {
		log.Printf("process_cpu=%.3fs", cpu)
	}
	return nil
}

func openRunDB(url string) (*sql.DB, error) {
	conn, err := db.OpenURL(url)
	if err != nil {
		return nil, err
	}
	if err := repositories.InitSchema(conn, db.Driver(url)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func report(run domain.Run, res search.Result) {
	fmt.Printf("run=%s instance=%s seed=%d cost=%.2f routes=%d iterations=%d time_of_best=%.3f total_time=%.3f\n",
		run.ID, run.Instance, run.Seed, run.Cost, run.Routes, res.Iterations, res.TimeOfBest, res.TotalTime)
}
