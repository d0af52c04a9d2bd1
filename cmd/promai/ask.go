package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"promai/internal/manager"
	"promai/internal/store"
	"promai/pkg/types"
)

// printPresenter writes chunks to out and progress and errors to errOut.
type printPresenter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func (p *printPresenter) OnLoadProgress(stage types.Stage, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.errOut, "loading: %-16s %3d%%\n", stage, percent)
}

func (p *printPresenter) OnChunk(text string, final bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if final {
		fmt.Fprintln(p.out)
		return
	}
	fmt.Fprint(p.out, text)
}

func (p *printPresenter) OnError(kind, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.errOut, "error [%s]: %s\n", kind, message)
}

func (p *printPresenter) OnNotice(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.errOut, "note: %s\n", message)
}

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		model       string
		convID      string
		attachments []string
	)
	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Send one message and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.DefaultModel
			}
			if model == "" {
				return errors.New("no model given: pass --model or set default_model")
			}
			if convID == "" {
				convID = store.NewID()
			} else if err := store.ValidateID(convID); err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			a.ctl.SetPresenter(&printPresenter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()})

			ctx := commandContext(cmd)
			if err := <-a.ctl.LoadModel(ctx, model); err != nil {
				return err
			}
			flag := types.NewCancelFlag()
			reply, err := a.ctl.Send(ctx, convID, strings.Join(args, " "), attachments, flag)
			if err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			defer signal.Stop(sig)
			go func() {
				select {
				case <-sig:
					flag.Cancel()
				case <-reply.Done():
				}
			}()

			out, err := reply.Wait()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "conversation: %s\n", convID)
			switch out.State {
			case manager.StreamFailed:
				return out.Err
			case manager.StreamCancelled:
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.ErrOrStderr(), "stopped; the partial answer was not saved")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model path (.gguf or .zip)")
	cmd.Flags().StringVarP(&convID, "conversation", "c", "", "conversation id to continue")
	cmd.Flags().StringSliceVarP(&attachments, "attach", "a", nil, "files to attach")
	return cmd
}
