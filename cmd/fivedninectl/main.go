// fivedninectl talks to a running fivednined the way the selection UI does.
//
// Usage:
//
//	fivedninectl [--socket PATH] [--games FILE] configure
//	fivedninectl [--socket PATH] launch NAME
//	fivedninectl [--socket PATH] [--games FILE] run NAME
//
// configure sends the games list, launch asks for one game by name, and run
// does both on a single connection.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/shotos/fivednine/internal/client"
	"github.com/shotos/fivednine/internal/protocol"
	"github.com/shotos/fivednine/internal/version"
)

const requestTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		socketPath  string
		gamesPath   string
		showVersion bool
	)

	flags := pflag.NewFlagSet("fivedninectl", pflag.ContinueOnError)
	flags.StringVarP(&socketPath, "socket", "s", protocol.DefaultSocketPath, "daemon socket path")
	flags.StringVarP(&gamesPath, "games", "g", "games.yaml", "YAML file listing the games to configure")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fivedninectl [flags] <configure | launch NAME | run NAME>\n\nFlags:\n%s", flags.FlagUsages())
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println(version.Info("fivedninectl"))
		return nil
	}

	rest := flags.Args()
	if len(rest) < 1 {
		flags.Usage()
		return errors.New("missing command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch rest[0] {
	case "configure":
		return withClient(ctx, socketPath, func(c *client.Client) error {
			return configure(ctx, c, gamesPath)
		})

	case "launch":
		if len(rest) < 2 {
			return errors.New("usage: fivedninectl launch NAME")
		}
		return withClient(ctx, socketPath, func(c *client.Client) error {
			return launch(ctx, c, rest[1])
		})

	case "run":
		if len(rest) < 2 {
			return errors.New("usage: fivedninectl run NAME")
		}
		return withClient(ctx, socketPath, func(c *client.Client) error {
			if err := configure(ctx, c, gamesPath); err != nil {
				return err
			}
			return launch(ctx, c, rest[1])
		})

	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func withClient(ctx context.Context, socketPath string, fn func(*client.Client) error) error {
	c, err := client.Dial(ctx, socketPath)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func configure(ctx context.Context, c *client.Client, gamesPath string) error {
	games, err := client.LoadGames(gamesPath)
	if err != nil {
		return err
	}
	if err := c.Configure(ctx, games); err != nil {
		return err
	}
	fmt.Printf("configured %d games\n", len(games))
	return nil
}

func launch(ctx context.Context, c *client.Client, name string) error {
	if err := c.Launch(ctx, name); err != nil {
		return err
	}
	// The daemon does not reply; check its log for the outcome
	fmt.Printf("requested launch of %s\n", name)
	return nil
}
