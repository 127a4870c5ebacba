package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ocrd/internal/manager"
)

type recognizeOptions struct {
	mode   string
	stream bool
}

func newRecognizeCmd(opts *rootOptions) *cobra.Command {
	ro := &recognizeOptions{}
	cmd := &cobra.Command{
		Use:   "recognize IMAGE...",
		Short: "Recognize images from the command line and print the text",
		Long: "Runs the configured backend on each image and writes the result to stdout.\n" +
			"The first Ctrl+C aborts the running image; a second one exits.",
		Example: "  ocrd recognize --type text scan.png\n  ocrd recognize --backend anthropic invoice.jpg",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := newManager(cmd.Context(), opts.cfg)
			defer mgr.Close()
			if !mgr.Ready() {
				return fmt.Errorf("model not loaded: %s", mgr.Status().Error)
			}
			ctx, stop := cancelOnInterrupt(cmd.Context(), mgr)
			defer stop()
			return recognize(ctx, mgr, ro, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&ro.mode, "type", "t", string(manager.ModeTable), "Recognition mode: table|text")
	cmd.Flags().BoolVar(&ro.stream, "stream", true, "Print fragments as they are generated")
	return cmd
}

// cancelOnInterrupt sets the abort signal on the first interrupt and cancels
// the returned context on the second.
func cancelOnInterrupt(parent context.Context, mgr *manager.Manager) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		n := 0
		for {
			select {
			case <-sigs:
				n++
				if n == 1 {
					log.Info().Str("status", string(mgr.Cancel())).Msg("interrupt: aborting generation")
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}

func recognize(ctx context.Context, mgr *manager.Manager, ro *recognizeOptions, images []string, out io.Writer) error {
	mode := manager.ParseMode(ro.mode)
	for _, img := range images {
		req := manager.GenerationRequest{ImagePath: img, Mode: mode}
		if !ro.stream {
			text, err := mgr.ProcessOnce(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", img, err)
			}
			fmt.Fprintln(out, text)
			continue
		}
		cs, err := mgr.Stream(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", img, err)
		}
		for {
			chunk, ok := cs.Next(ctx)
			if !ok {
				break
			}
			if _, err := io.WriteString(out, chunk); err != nil {
				cs.Close()
				return err
			}
		}
		cs.Close()
		fmt.Fprintln(out)
		met := cs.Metrics()
		log.Info().Str("image", img).Str("outcome", string(met.Outcome)).Dur("total", met.Total).
			Int("tokens", met.Tokens).Float64("tokens_per_sec", met.Throughput).Msg("recognized")
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
