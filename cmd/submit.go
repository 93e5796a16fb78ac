package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hpcq/hpcq/internal/client"
)

func submitCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "submit <job-type>",
		Short: "Submit one job and wait for its result",
		Long: `Submit one job of the given type and block until its result arrives or
the type's wait ceiling elapses. Parameters are passed as repeated
--param key=value flags; numeric values are coerced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := openBroker()
			if err != nil {
				return err
			}
			defer broker.Close()

			parsed := make(map[string]interface{}, len(params))
			for _, p := range params {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --param %q, want key=value", p)
				}
				if n, err := strconv.Atoi(value); err == nil {
					parsed[key] = n
				} else {
					parsed[key] = value
				}
			}

			c := client.New(broker)
			fmt.Println(c.Submit(context.Background(), args[0], parsed))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "job parameter as key=value, repeatable")
	return cmd
}
