package main

import (
	"github.com/corymhall/editorbridge/client"
	"github.com/corymhall/editorbridge/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "editorbridge",
		Short:         "Local HTTP bridge that saves and inspects an editor session",
		Long:          "editorbridge runs as a language server inside the editor and exposes POST /saveAll and GET /diagnostics on a loopback port, so automation can save every open file and read the current diagnostics.",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./editorbridge.yaml)")
	flags.String("addr", "", "address the bridge listens on")
	flags.String("log-file", "", "server log file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("url", "", "bridge URL used by the client commands (default: $"+client.URLEnv+")")
	flags.Duration("timeout", 0, "client request timeout")

	_ = a.v.BindPFlag("bridge.addr", flags.Lookup("addr"))
	_ = a.v.BindPFlag("log.file", flags.Lookup("log-file"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("client.url", flags.Lookup("url"))
	_ = a.v.BindPFlag("client.timeout", flags.Lookup("timeout"))

	root.AddCommand(
		newServeCmd(a),
		newSaveAllCmd(a),
		newDiagnosticsCmd(a),
		newLogsCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.Client.URL, client.WithTimeout(a.cfg.Client.Timeout))
}
