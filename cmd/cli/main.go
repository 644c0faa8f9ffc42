package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/internal/app"
	"github.com/jrsteele09/go-portfolio-auth/internal/cli"
	"github.com/jrsteele09/go-portfolio-auth/internal/config"
	"github.com/jrsteele09/go-portfolio-auth/kvstore"
	"github.com/jrsteele09/go-portfolio-auth/users/kvrepo"
	fakeuserrepo "github.com/jrsteele09/go-portfolio-auth/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	memory := flag.Bool("memory", false, "keep accounts and sessions in memory only")
	flag.Parse()

	if err := run(*memory); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(memory bool) error {
	c, err := config.New()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(c.GetLogLevel())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx := context.Background()

	ui := cli.NewTerminalUI(os.Stdout)
	opts := []app.Option{app.WithUI(ui)}
	if memory {
		opts = append(opts,
			app.WithKVStore(kvstore.NewMemory()),
			app.WithCredentialStore(fakeuserrepo.NewFakeUserRepo(kvrepo.DemoUser(time.Now()))),
		)
	}

	a, err := app.Build(ctx, c, opts...)
	if err != nil {
		return err
	}
	defer a.Close()
	defer ui.Attach(a.Manager.Bus())()

	var appOpts []cli.AppOption
	if cli.StdinIsTerminal() {
		appOpts = append(appOpts, cli.WithPasswordReader(cli.TerminalPassword))
	}
	repl, err := cli.NewApp(a.Manager, c.GetAuthBackend(), os.Stdin, os.Stdout, appOpts...)
	if err != nil {
		return err
	}
	repl.Run(ctx)
	return nil
}
