package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"codenav/internal/config"
	"codenav/internal/navd"
)

func main() {
	listen := flag.String("listen", "", "listen address (tcp), overrides config")
	confPath := flag.String("config", "", "path to a YAML config file")
	root := flag.String("root", ".", "workspace root")
	stdio := flag.Bool("stdio", false, "serve a single session on stdin/stdout")
	flag.Parse()

	conf, err := config.Load(*confPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listen != "" {
		conf.Listen = *listen
	}

	rt, err := navd.NewRuntime(conf, *root)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rt.Close()

	if _, err := rt.Indexer.IndexAll(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *stdio {
		err = rt.Server.RunStdio(os.Stdin, os.Stdout)
	} else {
		err = rt.Server.Run()
	}
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			_, _ = fmt.Fprintf(os.Stderr, "listen address in use: %s\nTry: -listen 127.0.0.1:7462\n", conf.Listen)
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
