package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

func newLogsCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the language server log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !follow {
				return printFile(cmd.OutOrStdout(), a.cfg.Log.File)
			}
			return followFile(cmd, a.cfg.Log.File)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing lines as they are written")
	return cmd
}

func printFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func followFile(cmd *cobra.Command, path string) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:        true,
		ReOpen:        true, // serve truncates the log on start
		MustExist:     false,
		Poll:          runtime.GOOS == "windows", // on Windows poll for file changes instead of using the default inotify
		Logger:        tail.DiscardingLogger,
		CompleteLines: true,
	})
	if err != nil {
		return fmt.Errorf("following log: %w", err)
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				return line.Err
			}
			if _, err := fmt.Fprintln(out, line.Text); err != nil {
				return err
			}
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		}
	}
}
