package tree

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// RenderGraph writes the oblivious structure as a graphviz drawing: one node
// per depth, since the same split applies to every leaf of that depth. The
// format follows the file extension (png, svg, jpg).
func RenderGraph(structure ObliviousTreeStructure, fm *features.Manager, path string) error {
	if structure.Depth() == 0 {
		return errors.Wrapf(errors.ErrEmptyData, "RenderGraph")
	}

	format, ok := map[string]graphviz.Format{
		".png": graphviz.PNG,
		".svg": graphviz.SVG,
		".jpg": graphviz.JPG,
	}[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return errors.NewValueError("RenderGraph", "unsupported output extension")
	}

	ctx := context.Background()
	g, err := graphviz.New(ctx)
	if err != nil {
		return errors.Wrapf(err, "RenderGraph: create graphviz")
	}
	graph, err := g.Graph()
	if err != nil {
		return errors.Wrapf(err, "RenderGraph: create graph")
	}
	defer func() {
		_ = graph.Close()
		_ = g.Close()
	}()

	last, err := graph.CreateNodeByName("depth_0")
	if err != nil {
		return errors.Wrapf(err, "RenderGraph: create node")
	}
	last.Set("label", DescribeSplit(fm, structure.Splits[0]))
	for d := 1; d < structure.Depth(); d++ {
		n, err := graph.CreateNodeByName(fmt.Sprintf("depth_%d", d))
		if err != nil {
			return errors.Wrapf(err, "RenderGraph: create node")
		}
		n.Set("label", DescribeSplit(fm, structure.Splits[d]))
		if _, err := graph.CreateEdgeByName("", last, n); err != nil {
			return errors.Wrapf(err, "RenderGraph: create edge")
		}
		last = n
	}

	if err := g.RenderFilename(ctx, graph, format, path); err != nil {
		return errors.Wrapf(err, "RenderGraph: render %s", path)
	}
	return nil
}

// DescribeSplit formats a split with feature semantics resolved through the
// feature store: the border value for ordered features, the category for
// one-hot features, the tensor and config for CTRs.
func DescribeSplit(fm *features.Manager, split BinarySplit) string {
	switch {
	case fm.IsCat(split.FeatureID):
		return fmt.Sprintf("f%d == category %d", split.FeatureID, split.BinIdx)
	case fm.IsCtr(split.FeatureID):
		borders := fm.GetBorders(split.FeatureID)
		return fmt.Sprintf("%s > %.4g", fm.GetCtr(split.FeatureID), borders[split.BinIdx])
	default:
		borders := fm.GetBorders(split.FeatureID)
		return fmt.Sprintf("f%d > %.4g", split.FeatureID, borders[split.BinIdx])
	}
}
