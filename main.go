// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/gopxl/mainthread/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"govbsp/config"
	"govbsp/cvar"
	"govbsp/host"
)

import (
	// register the model loaders
	_ "govbsp/mdl"
	_ "govbsp/spr"
)

var (
	baseDir    = flag.String("basedir", ".", "directory holding the game data")
	game       = flag.String("game", "", "mod directory relative to basedir")
	configFile = flag.String("config", "", "YAML configuration file")
	logFile    = flag.String("logfile", "", "write logs to this rotated file")
	logLevel   = flag.String("loglevel", "info", "log level")
	manifest   = flag.String("manifest", "", "precache manifest loaded at start and saved at exit")
)

func setupLog(file, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if file != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	} else {
		logrus.SetOutput(os.Stderr)
	}
	return nil
}

func run() error {
	vars := cvar.NewList()
	cfg := &config.File{}
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return err
		}
		cfg.Apply(vars)
	}
	// flags win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "basedir":
			cfg.BaseDir = *baseDir
		case "game":
			cfg.Game = *game
		case "logfile":
			cfg.LogFile = *logFile
		case "loglevel":
			cfg.LogLevel = *logLevel
		case "manifest":
			cfg.Manifest = *manifest
		}
	})
	if cfg.BaseDir == "" {
		cfg.BaseDir = *baseDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = *logLevel
	}
	if err := setupLog(cfg.LogFile, cfg.LogLevel); err != nil {
		return err
	}

	h, err := host.New(host.Config{
		BaseDir:  cfg.BaseDir,
		Game:     cfg.Game,
		Manifest: cfg.Manifest,
		Vars:     vars,
		Log:      logrus.StandardLogger(),
		Out:      os.Stdout,
	})
	if err != nil {
		return err
	}
	defer h.Close()

	for _, line := range cfg.Exec {
		h.Buffer.AddText(line + "\n")
	}
	var in io.Reader = os.Stdin
	if args := flag.Args(); len(args) > 0 {
		in = strings.NewReader(strings.Join(args, " ") + "\n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return h.Run(ctx, in)
}

func main() {
	flag.Parse()
	var err error
	mainthread.Run(func() {
		err = run()
	})
	if err != nil && err != context.Canceled {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
