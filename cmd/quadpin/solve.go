package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frudas24/quadpin/internal/homography"
)

// newSolveCmd returns the solve subcommand, which prints the matrix for one mapping.
func newSolveCmd() *cobra.Command {
	var size, from, to string
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Print the projective matrix mapping a source onto a target quad",
		Long: `Solve maps the source rectangle (--size WxH) or source quad (--from) onto the
target quad (--to). Quads are four "x,y" pairs in top-left, top-right,
bottom-right, bottom-left order, separated by spaces or semicolons.`,
		Example: `  quadpin solve --size 200x100 --to "0,0 180,20 200,100 0,100"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var src homography.Quad
			switch {
			case from != "":
				q, err := parseQuad(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				src = q
			case size != "":
				w, h, err := parseSize(size)
				if err != nil {
					return fmt.Errorf("--size: %w", err)
				}
				src = homography.Rect(w, h)
			default:
				return fmt.Errorf("one of --size or --from is required")
			}
			dst, err := parseQuad(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			h, err := homography.Solve(src, dst)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for r := 0; r < 3; r++ {
				fmt.Fprintf(out, "%s %s %s\n", fmtNum(h[r*3]), fmtNum(h[r*3+1]), fmtNum(h[r*3+2]))
			}
			fmt.Fprintln(out, homography.Embed(h).CSS())
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "source rectangle as WxH")
	cmd.Flags().StringVar(&from, "from", "", "source quad, overrides --size")
	cmd.Flags().StringVar(&to, "to", "", "target quad")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// parseSize parses "WxH" into positive dimensions.
func parseSize(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width %q", ws)
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height %q", hs)
	}
	if !(w > 0 && h > 0) {
		return 0, 0, fmt.Errorf("size must be positive, got %q", s)
	}
	return w, h, nil
}

// parseQuad parses four "x,y" pairs.
func parseQuad(s string) (homography.Quad, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' || r == '\t' })
	if len(fields) != 4 {
		return homography.Quad{}, fmt.Errorf("expected 4 points, got %d", len(fields))
	}
	var q homography.Quad
	for i, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return homography.Quad{}, fmt.Errorf("point %q is not x,y", f)
		}
		x, errX := strconv.ParseFloat(xs, 64)
		y, errY := strconv.ParseFloat(ys, 64)
		if errX != nil || errY != nil {
			return homography.Quad{}, fmt.Errorf("point %q is not numeric", f)
		}
		q[i] = homography.Point{X: x, Y: y}
	}
	return q, nil
}

// fmtNum formats a matrix entry compactly.
func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
