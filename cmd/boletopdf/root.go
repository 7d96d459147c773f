package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wudi/boletopdf/observability"
	"github.com/wudi/boletopdf/render"
)

const envPrefix = "BOLETOPDF"

// app carries the settings shared by every subcommand.
type app struct {
	v      *viper.Viper
	zap    *zap.Logger
	logger observability.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var cfgFile string

	root := &cobra.Command{
		Use:           "boletopdf",
		Short:         "Render Brazilian bank payment slips as flattened PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, cfgFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.Bool("debug", false, "verbose development logging")
	flags.Int("parallelism", 0, "concurrent renders in batch mode (default GOMAXPROCS)")
	flags.String("template", "", "render on this PDF form instead of the built-in layouts")
	for _, name := range []string{"debug", "parallelism", "template"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(newRenderCmd(a), newBatchCmd(a), newFieldsCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command, cfgFile string) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()
	a.v.SetDefault("output.dir", ".")
	a.v.SetDefault("output.prefix", "boleto-")
	a.v.SetDefault("output.suffix", "")
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var err error
	if a.v.GetBool("debug") {
		a.zap, err = zap.NewDevelopment()
	} else {
		a.zap, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.logger = observability.NewZapLogger(a.zap)
	return nil
}

// engine builds a renderer from the loaded settings.
func (a *app) engine(onDone func(int)) (*render.Engine, []render.Option, error) {
	e, err := render.New(render.Config{
		Logger:      a.logger,
		Parallelism: a.v.GetInt("parallelism"),
		OnSlipDone:  onDone,
	})
	if err != nil {
		return nil, nil, err
	}
	var opts []render.Option
	if tpl := a.v.GetString("template"); tpl != "" {
		opts = append(opts, render.WithTemplatePath(tpl))
	}
	return e, opts, nil
}
