package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hpcq/hpcq/internal/worker"
)

func workerCmd() *cobra.Command {
	var (
		workerID string
		count    int
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start worker process(es) polling the shared queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := openBroker()
			if err != nil {
				return err
			}
			defer broker.Close()

			registry := worker.Default()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				sig := <-sigCh
				glog.Infof("received signal %v, shutting down", sig)
				cancel()
			}()

			var wg sync.WaitGroup
			for i := 0; i < count; i++ {
				id := workerID
				if count > 1 {
					id = fmt.Sprintf("%s-%d", workerID, i+1)
				}
				w := worker.New(id, broker, registry)
				wg.Add(1)
				go func() {
					defer wg.Done()
					w.Run(ctx)
				}()
			}
			wg.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&workerID, "id", "worker-1", "worker identifier stamped on results")
	cmd.Flags().IntVar(&count, "count", 1, "number of dispatch loops to run in this process")
	return cmd
}
