package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/docmap/docmap/store"
	"github.com/docmap/docmap/wire"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "ping":
		pingCmd(os.Args[2:])
	case "canon":
		canonCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `docmap CLI

Usage:
  docmap ping -config store.yaml        verify the store config and connection
  docmap canon [file]                   canonicalize a JSON document (stdin by default),
                                        preserving key order`)
}

func pingCmd(args []string) {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	var cfgPath string
	var timeout time.Duration
	fs.StringVar(&cfgPath, "config", "store.yaml", "path to the store config")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline")
	_ = fs.Parse(args)

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := store.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := store.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("uri", cfg.URI).Msg("connect")
	}
	defer func() { _ = client.Shutdown(context.Background()) }()
	log.Info().Str("database", cfg.Database).Msg("store reachable")
}

func canonCmd(args []string) {
	fs := flag.NewFlagSet("canon", flag.ExitOnError)
	_ = fs.Parse(args)

	in := os.Stdin
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "docmap:", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "docmap:", err)
		os.Exit(1)
	}
	v, err := wire.FromJSON(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "docmap:", err)
		os.Exit(1)
	}
	out, err := wire.ToJSON(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "docmap:", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
