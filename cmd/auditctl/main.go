// Command auditctl inspects and repairs the asynchronous audit queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"

	"github.com/umucyo/guarantee-gateway/cmd/auditctl/cli"
)

type config struct {
	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
}

func main() {
	os.Exit(run())
}

func run() int {
	jsonOut := flag.Bool("json", false, "print JSON output")
	limit := flag.Int("limit", 20, "maximum archived records to list")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: auditctl [-json] [-limit n] stats|archived|requeue")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "auditctl: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer inspector.Close()

	return cli.NewQueueCLI(inspector).Run(ctx, flag.Arg(0), cli.Options{JSONOutput: *jsonOut, Limit: *limit})
}
