package service

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/app/logic/v1/process"
)

type Options struct {
	ConfigPath string
}

func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "", "init api by given config")
}

func NewCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "service",
		Short: "chat workspace service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func Run(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	process.NewProcess(app).Start()
	serve(app)

	return nil
}

// NewProcessCommand runs only the background workers, no HTTP surface.
func NewProcessCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "reconcile workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunProcess(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func RunProcess(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	proc := process.NewProcess(app)
	proc.Start()
	defer proc.Stop()

	fmt.Println("Process starting...")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	return nil
}
