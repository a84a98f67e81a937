package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uia2-server/pkg/device"
	"github.com/devicelab-dev/uia2-server/pkg/platform"
)

// Columns of the compact output.
var hierarchyColumns = []string{
	"depth", platform.AttrClass, platform.AttrText, platform.AttrResourceID,
	platform.AttrContentDesc, platform.AttrBounds,
}

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the view hierarchy of the connected device",
	Description: `Print the accessibility tree of the connected device as an indented tree
or, with --compact, as CSV.

Examples:
  uia2-server hierarchy
  uia2-server hierarchy --compact
  uia2-server --device emulator-5554 hierarchy`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
	},
	Action: runHierarchy,
}

func runHierarchy(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dev, err := device.New(ctx, c.String("device"), device.Options{})
	if err != nil {
		return err
	}
	h, err := dev.Hierarchy(ctx)
	if err != nil {
		return fmt.Errorf("failed to dump hierarchy: %w", err)
	}

	if c.Bool("compact") {
		return writeHierarchyCSV(os.Stdout, h)
	}
	writeHierarchyTree(os.Stdout, h)
	return nil
}

func writeHierarchyTree(w io.Writer, h *device.Hierarchy) {
	var walk func(n platform.Node, depth int)
	walk = func(n platform.Node, depth int) {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), describeNode(n))
		for _, child := range n.Children() {
			walk(child, depth+1)
		}
	}
	for i, root := range h.Roots {
		pkg, _ := root.Attribute(platform.AttrPackage)
		fmt.Fprintf(w, "Window %d (%s)\n", i, pkg)
		walk(root, 1)
	}
}

func describeNode(n platform.Node) string {
	class, _ := n.Attribute(platform.AttrClass)
	parts := []string{class}
	for _, attr := range []string{platform.AttrText, platform.AttrResourceID, platform.AttrContentDesc} {
		if v, _ := n.Attribute(attr); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", attr, v))
		}
	}
	if b, _ := n.Attribute(platform.AttrBounds); b != "" {
		parts = append(parts, b)
	}
	return strings.Join(parts, " ")
}

func writeHierarchyCSV(w io.Writer, h *device.Hierarchy) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(hierarchyColumns); err != nil {
		return err
	}

	var walk func(n platform.Node, depth int) error
	walk = func(n platform.Node, depth int) error {
		row := []string{fmt.Sprint(depth)}
		for _, attr := range hierarchyColumns[1:] {
			v, _ := n.Attribute(attr)
			row = append(row, v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		for _, child := range n.Children() {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range h.Roots {
		if err := walk(root, 0); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
