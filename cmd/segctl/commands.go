package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"segd/internal/render"
	"segd/pkg/types"
)

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up and ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			c := opts.client()
			msg, err := c.Index(ctx)
			if err != nil {
				return err
			}
			ready, err := c.Ready(ctx)
			if err != nil {
				return err
			}
			state := "loading"
			if ready {
				state = "ready"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", msg, state)
			return nil
		},
	}
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show models, queues and the embedding cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			st, err := opts.client().Status(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func modelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models known to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			models, err := opts.client().Models(ctx)
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ID, m.Family)
			}
			return nil
		},
	}
}

func predictCmd(opts *options) *cobra.Command {
	var image string
	var pos, neg []string
	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Segment from click prompts",
		Example: "  segctl predict --image /data/cell.png --point 120,88 --neg 10,10 --out mask.png",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := pointPrompt(pos, neg)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			resp, err := opts.client().Predict(ctx, types.PredictRequest{
				ImagePath: image,
				Prompts:   []types.PointPrompt{prompt},
				Model:     opts.model,
			})
			if err != nil {
				return err
			}
			mask, ok := render.FirstCandidate(resp)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no mask returned")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d candidate masks, first covers %d pixels\n", len(resp.Masks[0]), mask.Area())
			labels, err := render.Labels([]types.Mask{mask})
			if err != nil {
				return err
			}
			return opts.writeOutputs(cmd, image, labels)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "Image path as seen by the server")
	cmd.Flags().StringArrayVar(&pos, "point", nil, "Foreground point x,y (repeatable)")
	cmd.Flags().StringArrayVar(&neg, "neg", nil, "Background point x,y (repeatable)")
	_ = cmd.MarkFlagRequired("image")
	addRenderFlags(cmd, opts)
	return cmd
}

func boxCmd(opts *options) *cobra.Command {
	var image, box string
	cmd := &cobra.Command{
		Use:     "box",
		Short:   "Segment the object inside a box",
		Example: "  segctl box --image /data/cell.png --box 367,168,441,349 --overlay view.png",
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseFloats(box, 4)
			if err != nil {
				return fmt.Errorf("--box: %w", err)
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			resp, err := opts.client().BoxSegment(ctx, types.BoxSegmentRequest{ImagePath: image, BoxCoords: coords, Model: opts.model})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mask covers %d pixels\n", resp.Mask.Area())
			labels, err := render.Labels([]types.Mask{resp.Mask})
			if err != nil {
				return err
			}
			return opts.writeOutputs(cmd, image, labels)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "Image path as seen by the server")
	cmd.Flags().StringVar(&box, "box", "", "Box x0,y0,x1,y1")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("box")
	addRenderFlags(cmd, opts)
	return cmd
}

func autoCmd(opts *options) *cobra.Command {
	var image string
	var adaptive, combined bool
	cmd := &cobra.Command{
		Use:     "auto",
		Short:   "Segment everything in the image",
		Example: "  segctl auto --image /data/cell.png --adaptive --out labels.png --overlay view.png --display-size 512",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			req := types.AutoSegmentRequest{ImagePath: image, Combined: combined, Model: opts.model}
			var masks []types.Mask
			if adaptive {
				resp, err := opts.client().AutoSegmentAdaptive(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "params used: %+v\n", resp.ParamsUsed)
				masks = resp.Masks
			} else {
				resp, err := opts.client().AutoSegment(ctx, req)
				if err != nil {
					return err
				}
				masks = resp.Masks
				if resp.MicroMask != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "micro-sam label image %dx%d\n", resp.MicroMask.Width, resp.MicroMask.Height)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d masks\n", len(masks))
			if len(masks) == 0 {
				return nil
			}
			labels, err := render.Labels(masks)
			if err != nil {
				return err
			}
			return opts.writeOutputs(cmd, image, labels)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "Image path as seen by the server")
	cmd.Flags().BoolVar(&adaptive, "adaptive", false, "Pick generator parameters from the image size")
	cmd.Flags().BoolVar(&combined, "combined", false, "Also request sam2_mask and micro_mask label images")
	_ = cmd.MarkFlagRequired("image")
	addRenderFlags(cmd, opts)
	return cmd
}

func embedCmd(opts *options) *cobra.Command {
	var image string
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Precompute and cache the image embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			resp, err := opts.client().ComputeEmbedding(ctx, types.ComputeEmbeddingRequest{ImagePath: image, Model: opts.model})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "Image path as seen by the server")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}
