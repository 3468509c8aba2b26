// Command agrama-admin is an offline maintenance tool for snapshot files:
// it never serves primitive requests and never runs alongside a live
// dispatcher against the same file, since SQLite's file locking would
// simply block one of the two.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agrama/agrama/pkg/snapshot"
)

var jsonOut bool

var rootCmd = &cobra.Command{
	Use:   "agrama-admin",
	Short: "Maintenance CLI for agrama snapshot files",
	Long:  "Inspect, compact, and browse the history recorded in an agrama snapshot database.",
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <snapshot-path>",
	Short: "Print key, node, and edge counts for a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		snap, err := snapshot.Open(context.Background(), path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer snap.Close()

		ctx := context.Background()
		keys, nodes, edges, err := snap.Counts(ctx)
		if err != nil {
			return fmt.Errorf("count %s: %w", path, err)
		}

		info, statErr := os.Stat(path)

		if jsonOut {
			fmt.Printf("{\"path\":%q,\"keys\":%d,\"nodes\":%d,\"edges\":%d}\n", path, keys, nodes, edges)
			return nil
		}

		fmt.Printf("Snapshot: %s\n", path)
		if statErr == nil {
			fmt.Printf("  Size:  %s\n", humanize.Bytes(uint64(info.Size())))
		}
		fmt.Printf("  Keys:  %s\n", humanize.Comma(int64(keys)))
		fmt.Printf("  Nodes: %s\n", humanize.Comma(int64(nodes)))
		fmt.Printf("  Edges: %s\n", humanize.Comma(int64(edges)))
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact <snapshot-path>",
	Short: "Reclaim space and refresh query statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		snap, err := snapshot.Open(context.Background(), path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer snap.Close()

		before, statErr := os.Stat(path)

		if err := snap.Vacuum(context.Background()); err != nil {
			return fmt.Errorf("compact %s: %w", path, err)
		}

		if statErr == nil {
			after, err := os.Stat(path)
			if err == nil {
				fmt.Printf("Compacted %s: %s -> %s\n", path,
					humanize.Bytes(uint64(before.Size())), humanize.Bytes(uint64(after.Size())))
				return nil
			}
		}
		fmt.Printf("Compacted %s\n", path)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <snapshot-path> <key>",
	Short: "Print the full recorded history of a key, newest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, key := args[0], args[1]
		snap, err := snapshot.Open(context.Background(), path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer snap.Close()

		store, _, err := snap.Load(context.Background())
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}

		history, err := store.GetHistory(key, 1<<31-1)
		if err != nil {
			return fmt.Errorf("history for %q: %w", key, err)
		}
		if len(history) == 0 {
			fmt.Printf("No recorded history for %q\n", key)
			return nil
		}

		for i, c := range history {
			fmt.Printf("%d. %s by %s (%s)\n", i+1, humanize.Time(c.Timestamp), c.Author, c.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))
			if len(c.Content) <= 200 {
				fmt.Printf("   %s\n", string(c.Content))
			} else {
				fmt.Printf("   %s... (%s total)\n", string(c.Content[:200]), humanize.Bytes(uint64(len(c.Content))))
			}
		}
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys <snapshot-path>",
	Short: "List every key currently tracked by the snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		snap, err := snapshot.Open(context.Background(), path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer snap.Close()

		store, _, err := snap.Load(context.Background())
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}

		var keys []string
		for k := range store.Snapshot() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit machine-readable output where supported")
	rootCmd.AddCommand(inspectCmd, compactCmd, historyCmd, keysCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
