package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"segd/internal/client"
	"segd/internal/render"
	"segd/pkg/types"
)

const defaultServer = "http://127.0.0.1:5703"

type options struct {
	server      string
	logLevel    string
	timeout     time.Duration
	model       string
	out         string
	overlay     string
	displaySize int
	alpha       float64
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &options{server: defaultServer}
	if v := getenv("SEGCTL_SERVER"); v != "" {
		opts.server = v
	}
	root := &cobra.Command{
		Use:           "segctl",
		Short:         "Drive a segd server and render its results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", opts.server, "segd base URL (defaults SEGCTL_SERVER)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Ask the server to log these requests at this level")
	pf.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Request timeout")
	pf.StringVar(&opts.model, "model", "", "Model id (server default when empty)")

	root.AddCommand(
		healthCmd(opts),
		statusCmd(opts),
		modelsCmd(opts),
		predictCmd(opts),
		boxCmd(opts),
		autoCmd(opts),
		embedCmd(opts),
	)
	return root
}

func addRenderFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.out, "out", "", "Write the label image (16-bit PNG) here")
	cmd.Flags().StringVar(&opts.overlay, "overlay", "", "Write a colour overlay of the labels on the image here")
	cmd.Flags().IntVar(&opts.displaySize, "display-size", 0, "Resize the overlay to NxN (e.g. 512)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 0.5, "Overlay opacity")
}

func (o *options) client() *client.Client {
	return client.New(o.server, client.WithLogLevel(o.logLevel))
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutputs saves the label PNG and the overlay requested by flags.
func (o *options) writeOutputs(cmd *cobra.Command, imagePath string, labels types.Labels) error {
	if o.out != "" {
		if err := render.SavePNG(o.out, render.LabelImage(labels)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "labels written to %s\n", o.out)
	}
	if o.overlay != "" {
		img, err := render.LoadImage(imagePath)
		if err != nil {
			return err
		}
		img = render.Fit(img, o.displaySize)
		dst := render.Overlay(img, labels, o.alpha)
		render.Outline(dst, labels, 2)
		if err := render.SavePNG(o.overlay, dst); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "overlay written to %s\n", o.overlay)
	}
	return nil
}
