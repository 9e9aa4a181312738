package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/config"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/httpapi"
)

type serveFlagValues struct {
	port string
}

var serveFlags serveFlagValues

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.ServerPort
		if flagChanged(cmd, "port") {
			port = strings.TrimSpace(serveFlags.port)
			if port == "" {
				return fmt.Errorf("--port must not be empty")
			}
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.openCatalog(ctx); err != nil {
			return err
		}
		srv, err := httpapi.New(httpapi.Options{
			Catalog: a.controller,
			Assets:  a.resolver,
			Logger:  a.logger,
		})
		if err != nil {
			return err
		}

		a.logger.Info("starting catalog server", "port", port, "config", a.cfg)
		a.controller.Fetch()
		return srv.Run(ctx, net.JoinHostPort("", port))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.port, "port", "", fmt.Sprintf("Listen port (overrides %s)", config.EnvServerPort))

	rootCmd.AddCommand(serveCmd)
}
