package cmd

import (
	"net/http"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hpcq/hpcq/internal/client"
	"github.com/hpcq/hpcq/internal/gateway"
)

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway exposing the caller-facing operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := openBroker()
			if err != nil {
				return err
			}
			defer broker.Close()

			server := gateway.New(client.New(broker), broker)
			glog.Infof("starting HTTP listener at %s", listen)
			return http.ListenAndServe(listen, server.Router())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "0.0.0.0:2112", "address to listen on")
	return cmd
}
