package main

import (
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/midbel/cli"

	"github.com/midbel/angle/service"
)

var serveCmd = cli.Command{
	Name:    "serve",
	Alias:   []string{"server"},
	Summary: "transform documents posted over http",
	Handler: &ServeCmd{},
}

type ServeCmd struct {
	Addr string
	Root string
	EngineOptions
}

func (c *ServeCmd) Run(args []string) error {
	set := flag.NewFlagSet("serve", flag.ContinueOnError)
	set.StringVar(&c.Addr, "a", settings.Service.Addr, "address to listen on")
	set.StringVar(&c.Root, "r", settings.Service.Root, "directory holding the stylesheets")
	c.EngineOptions.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if !settings.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	ctx, cancel := interruptible()
	defer cancel()

	cfg := settings.Service
	cfg.Addr = c.Addr
	cfg.Root = c.Root

	rep := NewReporter(os.Stderr, c.Quiet)
	srv := service.New(cfg, c.processor(rep.Diagnostics()), logger)
	err := srv.ListenAndServe(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}
