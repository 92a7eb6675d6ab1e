// Command kvs is a thin CLI driver over the two storage engines: it
// parses one subcommand, opens the selected engine, performs exactly
// one operation, and exits.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/roshangiyanani/pingcap-kvs/internal/kvstore"
	"github.com/roshangiyanani/pingcap-kvs/internal/logengine"
	"github.com/roshangiyanani/pingcap-kvs/internal/snapshotengine"
)

const (
	storeHashMap = "hashmap"
	storeLog     = "log"

	defaultLocation = "./store"
)

func main() {
	app := &cli.App{
		Name:  "kvs",
		Usage: "an embedded key/value store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				Value:   storeHashMap,
				Usage:   "backing store type: hashmap or log",
			},
			&cli.StringFlag{
				Name:    "location",
				Aliases: []string{"l"},
				Value:   defaultLocation,
				Usage:   "path to the store (file for hashmap, directory for log)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable structured debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print the value for a key",
				ArgsUsage: "<key>",
				Action:    withStore(runGet),
			},
			{
				Name:      "set",
				Usage:     "set a key to a value",
				ArgsUsage: "<key> <value>",
				Action:    withStore(runSet),
			},
			{
				Name:      "rm",
				Usage:     "remove a key",
				ArgsUsage: "<key>",
				Action:    withStore(runRemove),
			},
			{
				Name:   "compact",
				Usage:  "compact the store, if supported",
				Action: withStore(runCompact),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStore opens the configured engine, runs fn, and always closes
// the engine afterward, surfacing whichever error occurred first.
func withStore(fn func(*cli.Context, kvstore.Store) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		store, err := openStore(c)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil && err == nil {
				err = cli.Exit(cerr, 1)
			}
		}()

		if err := fn(c, store); err != nil {
			return cli.Exit(err, 1)
		}
		return nil
	}
}

func openStore(c *cli.Context) (kvstore.Store, error) {
	location := c.String("location")

	var logger *zap.SugaredLogger
	if c.Bool("verbose") {
		z, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = z.Sugar()
	} else {
		logger = zap.NewNop().Sugar()
	}

	switch c.String("store") {
	case storeHashMap:
		return snapshotengine.Open(location)
	case storeLog:
		return logengine.Open(location, logengine.WithLogger(logger))
	default:
		return nil, cli.Exit(fmt.Sprintf("unknown store type %q", c.String("store")), 1)
	}
}

func runGet(c *cli.Context, store kvstore.Store) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: get <key>", 1)
	}
	value, ok, err := store.Get(c.Args().Get(0))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Key not found")
		return nil
	}
	fmt.Println(value)
	return nil
}

func runSet(c *cli.Context, store kvstore.Store) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: set <key> <value>", 1)
	}
	return store.Set(c.Args().Get(0), c.Args().Get(1))
}

func runRemove(c *cli.Context, store kvstore.Store) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: rm <key>", 1)
	}
	_, ok, err := store.Remove(c.Args().Get(0))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Key not found")
	}
	return nil
}

func runCompact(c *cli.Context, store kvstore.Store) error {
	compactor, ok := store.(kvstore.Compactor)
	if !ok {
		fmt.Println("Compaction not supported on this type of store.")
		return nil
	}
	return compactor.Compact()
}
