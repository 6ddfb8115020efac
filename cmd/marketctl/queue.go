package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"automarket/internal/notify"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the manager notification queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pending, in-flight and dead-lettered notification counts",
	RunE:  runQueueStats,
}

var queueRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Requeue the in-flight notifications of a consumer that is gone",
	RunE:  runQueueRecover,
}

func init() {
	queueRecoverCmd.Flags().String("consumer", "", "Consumer whose in-flight list is requeued")
	_ = queueRecoverCmd.MarkFlagRequired("consumer")

	queueCmd.AddCommand(queueStatsCmd, queueRecoverCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	rdb, err := connectRedis(cmd)
	if err != nil {
		return err
	}
	defer rdb.Close()

	q := notify.NewRedisQueue(rdb)
	ctx := cmdContext(cmd)
	pending, dead, err := q.Len(ctx)
	if err != nil {
		return err
	}
	inFlight, err := q.InFlight(ctx)
	if err != nil {
		return err
	}
	printQueueStats(cmd.OutOrStdout(), pending, dead, inFlight)
	return nil
}

func runQueueRecover(cmd *cobra.Command, args []string) error {
	consumer, _ := cmd.Flags().GetString("consumer")

	rdb, err := connectRedis(cmd)
	if err != nil {
		return err
	}
	defer rdb.Close()

	n, err := notify.NewRedisQueue(rdb).WithConsumer(consumer).Recover(cmdContext(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "requeued %d notification(s) of consumer %s\n", n, consumer)
	return nil
}

func printQueueStats(w io.Writer, pending, dead int64, inFlight map[string]int64) {
	fmt.Fprintf(w, "%-24s %d\n", "pending", pending)
	fmt.Fprintf(w, "%-24s %d\n", "dead", dead)

	consumers := make([]string, 0, len(inFlight))
	for c := range inFlight {
		consumers = append(consumers, c)
	}
	sort.Strings(consumers)
	for _, c := range consumers {
		fmt.Fprintf(w, "%-24s %d\n", "in-flight "+c, inFlight[c])
	}
}
