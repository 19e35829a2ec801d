package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/knx-integration/cmd"
	"github.com/anicoll/knx-integration/pkg/hasher"
)

func main() {
	app := &cli.App{
		Name:   "knx-bridge",
		Usage:  "bridge between the smarthome visu and the local network",
		Action: cmd.BridgeCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "base-url",
				EnvVars:  []string{"KNX_BASE_URL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "mappings-file",
				EnvVars:  []string{"KNX_MAPPINGS_FILE"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "api-addr",
				EnvVars: []string{"API_ADDR"},
				Value:   "0.0.0.0:8000",
			},
			&cli.StringFlag{
				Name:    "api-token-hash",
				EnvVars: []string{"API_TOKEN_HASH"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-host",
				EnvVars: []string{"MQTT_HOST"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "database-url",
				EnvVars: []string{"DATABASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
				Value:   "./migrations",
			},
			&cli.BoolFlag{
				Name:    "headless",
				EnvVars: []string{"KNX_HEADLESS"},
				Value:   true,
			},
			&cli.BoolFlag{
				Name:    "skip-tls-verify",
				EnvVars: []string{"KNX_SKIP_TLS_VERIFY"},
				Value:   false,
			},
			&cli.DurationFlag{
				Name:    "request-timeout",
				EnvVars: []string{"KNX_REQUEST_TIMEOUT"},
				Value:   15 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "login-timeout",
				EnvVars: []string{"KNX_LOGIN_TIMEOUT"},
				Value:   3 * time.Minute,
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "gen-token",
				Usage:  "generate an API bearer token and its bcrypt hash",
				Action: genToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func genToken(_ *cli.Context) error {
	token, err := hasher.GenerateToken(32)
	if err != nil {
		return err
	}
	hash, err := hasher.HashPassword([]byte(token))
	if err != nil {
		return err
	}
	fmt.Println("token:", token)
	fmt.Println("hash: ", hash)
	return nil
}
