// Package classifier evaluates the pretrained gradient-boosted fraud model.
//
// The model is trained offline and exported as a JSON artifact: an ordered
// list of binary decision trees over the canonical feature vector, whose
// summed leaf margins pass through a sigmoid to yield a probability. The
// artifact is loaded once at construction; a missing or malformed file is a
// construction-time failure, not a per-call surprise.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/riskshield/riskshield/internal/domain"
)

// modelArtifact is the on-disk JSON layout of an exported model.
type modelArtifact struct {
	Model     string   `json:"model"`
	Version   string   `json:"version"`
	Features  []string `json:"features"`
	BaseScore float64  `json:"base_score"`
	Trees     []tree   `json:"trees"`
}

// tree is one boosted decision tree as a flat node array rooted at index 0.
type tree struct {
	Nodes []node `json:"nodes"`
}

// node is either a split (Feature/Threshold/Left/Right) or a leaf (Leaf true,
// Value is the margin contribution).
type node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

// GBDT is the loaded gradient-boosted tree ensemble.
type GBDT struct {
	version   string
	baseScore float64
	trees     []tree

	// featureIdx maps the artifact's feature positions onto the canonical
	// feature order, so artifacts may declare features in any order.
	featureIdx []int
}

// Load reads and validates a model artifact.
func Load(cfg domain.ClassifierConfig) (*GBDT, error) {
	raw, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %w", cfg.ModelPath, err)
	}

	var artifact modelArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", cfg.ModelPath, err)
	}

	if artifact.Model != "gbdt" {
		return nil, fmt.Errorf("unsupported model type %q in %s", artifact.Model, cfg.ModelPath)
	}
	if len(artifact.Trees) == 0 {
		return nil, fmt.Errorf("model artifact %s contains no trees", cfg.ModelPath)
	}

	idx, err := mapFeatures(artifact.Features)
	if err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", cfg.ModelPath, err)
	}

	g := &GBDT{
		version:    artifact.Version,
		baseScore:  artifact.BaseScore,
		trees:      artifact.Trees,
		featureIdx: idx,
	}

	for ti, t := range artifact.Trees {
		if err := validateTree(t, len(idx)); err != nil {
			return nil, fmt.Errorf("model artifact %s: tree %d: %w", cfg.ModelPath, ti, err)
		}
	}

	return g, nil
}

// mapFeatures resolves artifact feature names against the canonical order.
func mapFeatures(names []string) ([]int, error) {
	canonical := domain.FeatureNames()
	pos := make(map[string]int, len(canonical))
	for i, n := range canonical {
		pos[n] = i
	}

	idx := make([]int, len(names))
	for i, n := range names {
		p, ok := pos[n]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", n)
		}
		idx[i] = p
	}
	return idx, nil
}

func validateTree(t tree, featureCount int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= featureCount {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if n.Left <= i || n.Right <= i {
			return fmt.Errorf("node %d: children must follow their parent", i)
		}
	}
	return nil
}

// Version returns the artifact's declared model version.
func (g *GBDT) Version() string {
	return g.version
}

// Probability evaluates the ensemble for one feature vector.
func (g *GBDT) Probability(_ context.Context, fv *domain.FeatureVector) (float64, error) {
	values := fv.Values()

	// Re-order the canonical values into the artifact's feature order.
	x := make([]float64, len(g.featureIdx))
	for i, p := range g.featureIdx {
		x[i] = values[p]
	}

	margin := g.baseScore
	for _, t := range g.trees {
		margin += evalTree(t, x)
	}

	return sigmoid(margin), nil
}

// evalTree walks one tree from the root. Splits send x[feature] <= threshold
// left, else right.
func evalTree(t tree, x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func sigmoid(margin float64) float64 {
	return 1.0 / (1.0 + math.Exp(-margin))
}
