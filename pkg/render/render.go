package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
)

// Format is an output format.
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatDOT, FormatSVG, FormatPNG:
		return f, nil
	}
	return "", gerrors.New(gerrors.ErrCodeInvalidInput, "unknown format %q (want dot, svg or png)", s)
}

// Engine picks the Graphviz layout for opts: neato keeps pinned positions,
// dot lays out from scratch.
func Engine(opts Options) graphviz.Layout {
	if opts.Positions {
		return graphviz.NEATO
	}
	return graphviz.DOT
}

// Render lays out a DOT graph and renders it. FormatDOT returns the input
// unchanged.
func Render(ctx context.Context, dot string, format Format, engine graphviz.Layout) ([]byte, error) {
	if format == FormatDOT {
		return []byte(dot), nil
	}
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()
	gv.SetLayout(engine)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "parse DOT")
	}
	defer g.Close()

	var gf graphviz.Format
	switch format {
	case FormatSVG:
		gf = graphviz.SVG
	case FormatPNG:
		gf = graphviz.PNG
	default:
		return nil, gerrors.New(gerrors.ErrCodeUnsupported, "format %q", format)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gf, &buf); err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInternal, err, "render %s", format)
	}
	if format == FormatSVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([-0-9.]+)\s+([-0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing scales with
// its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
