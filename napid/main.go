// napid is the NAPI daemon: the control-plane authority for nic tags,
// networks, network pools, IP records, nics and aggregations.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netfabric/napi/shared/logger"
	"github.com/netfabric/napi/shared/version"
)

type cmdGlobal struct {
	flagHelp    bool
	flagVersion bool

	flagLogfile string
	flagVerbose bool
	flagDebug   bool
}

type cmdDaemon struct {
	global *cmdGlobal

	flagConfig string
}

func (c *cmdDaemon) command() *cobra.Command {
	cmd := &cobra.Command{}

	cmd.Use = "napid"
	cmd.Short = "NAPI network control-plane daemon"
	cmd.Long = `Description:
  NAPI network control-plane daemon

  The daemon is the bookkeeping authority for a data-center networking
  fabric: nic tags, networks and their IP records, network pools, nics
  and link aggregations, served over a REST API.
`
	cmd.RunE = c.run

	return cmd
}

func (c *cmdDaemon) run(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errors.New("Unexpected arguments")
	}

	config, err := loadConfig(c.flagConfig)
	if err != nil {
		return err
	}

	verbose := c.global.flagVerbose || config.LogLevel == "info"
	debug := c.global.flagDebug || config.LogLevel == "debug"

	err = logger.InitLogger(c.global.flagLogfile, verbose, debug)
	if err != nil {
		return err
	}

	d := newDaemon(config)

	err = d.Init()
	if err != nil {
		if d.db != nil {
			_ = d.db.Close()
		}

		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- d.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, exiting", logger.Ctx{"signal": sig.String()})
	case err = <-serveErr:
		if err != nil {
			logger.Error("API listener failed", logger.Ctx{"err": err})
			_ = d.Stop(context.Background())
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return d.Stop(ctx)
}

func main() {
	daemonCmd := cmdDaemon{}
	app := daemonCmd.command()
	app.SilenceUsage = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	// Global flags
	globalCmd := cmdGlobal{}
	daemonCmd.global = &globalCmd
	app.PersistentFlags().BoolVar(&globalCmd.flagVersion, "version", false, "Print version number")
	app.PersistentFlags().BoolVarP(&globalCmd.flagHelp, "help", "h", false, "Print help")
	app.PersistentFlags().StringVar(&globalCmd.flagLogfile, "logfile", "", "Path to the log file")
	app.PersistentFlags().BoolVarP(&globalCmd.flagVerbose, "verbose", "v", false, "Show all information messages")
	app.PersistentFlags().BoolVarP(&globalCmd.flagDebug, "debug", "d", false, "Show all debug messages")

	app.Flags().StringVar(&daemonCmd.flagConfig, "config", "", "Path to the daemon configuration file")

	// Version handling
	app.SetVersionTemplate("{{.Version}}\n")
	app.Version = version.Version

	// Run the main command and handle errors
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
