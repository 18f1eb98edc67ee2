package main

import (
	"log"
	"os"
	"vrp-search-service/internal/adapters/repositories"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/platform/db"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	app := cli.NewApp()
	app.Name = "dbtool"
	app.Usage = "initialize the run database and seed the best-known catalogue"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "database-url",
			Usage:  "postgres:// URL or sqlite path",
			EnvVar: "DATABASE_URL",
			Value:  "sqlite://data/runs.db",
		},
		cli.StringFlag{
			Name:   "seed",
			Usage:  "best-known JSON file; empty skips seeding",
			EnvVar: "SEED_PATH",
			Value:  config.Get("SEED_PATH", "data/seeds/best_known.json"),
		},
	}
	app.Action = initAndSeed

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(c *cli.Context) error {
	databaseURL := c.String("database-url")
	driver := db.Driver(databaseURL)

	conn, err := db.OpenURL(databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(conn, driver); err != nil {
		return cli.NewExitError("schema initialization failed: "+err.Error(), 1)
	}
	log.Println("Schema ready.")

	seedPath := c.String("seed")
	if seedPath == "" {
		return nil
	}
	log.Println("Seeding best-known costs...")
	n, err := repositories.SeedFromJSON(conn, driver, seedPath)
	if err != nil {
		return cli.NewExitError("seeding failed: "+err.Error(), 1)
	}
	log.Printf("Seeding complete. entries=%d", n)

	return nil
}
