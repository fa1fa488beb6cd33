package main

import (
	"flag"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/tagfs"
	"github.com/brettbedarf/tagfs/config"
	"github.com/brettbedarf/tagfs/internal/util"
	"github.com/brettbedarf/tagfs/library"
	"github.com/brettbedarf/tagfs/server"
)

func main() {
	var (
		root       string
		configPath string
		initLib    bool
		umount     bool
		verbose    int
	)
	flag.StringVar(&root, "root", ".", "Path to the library root directory")
	flag.StringVar(&root, "r", ".", "--root (shorthand)")
	flag.StringVar(&configPath, "config", "", "Path to config file (yaml or json)")
	flag.BoolVar(&initLib, "init", false, "Initialize the library root if needed before mounting")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.Parse()

	// Config is defaults, file overrides, then CLI flags, in that order.
	cfg := config.NewConfig(nil)
	if configPath != "" {
		override, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			util.InitializeLogger(util.ErrorLevel)
			l := util.GetLogger("main")
			l.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
		cfg.Merge(override)
	}
	cfg.Merge(&config.ConfigOverride{LogLvl: &verbose})

	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")

	mnt := flag.Arg(0)
	logger.Info().Int("verbose", verbose).Str("root", root).Str("mnt", mnt).Msg("tagfs initializing")
	if mnt == "" {
		logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
	}
	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() //nolint:errcheck
	}

	var (
		lib *library.Library
		err error
	)
	if initLib {
		lib, err = library.Init(root)
	} else {
		lib, err = library.Open(root)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("root", root).Msg("Failed to open library")
	}
	logger.Info().Str("root", lib.Root()).Str("meta", tagfs.MetaDirName).Msg("Library opened")

	fs := server.New(cfg, lib)
	if err := fs.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	// Wait for termination signal
	sig := <-signalChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")

	// Unmount the filesystem and snapshot the tree
	if err := fs.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().Msg("Filesystem unmounted successfully")
	}
}
