package predictor

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"golang.org/x/sync/errgroup"
)

// xgbRowsPerTask is the number of rows one worker scores at a time.
const xgbRowsPerTask = 256

// Objectives whose prediction is the raw margin, so base_score adds as is.
var xgbIdentityObjectives = map[string]bool{
	"reg:squarederror":     true,
	"reg:linear":           true,
	"reg:absoluteerror":    true,
	"reg:pseudohubererror": true,
	"reg:quantileerror":    true,
}

type xgbDocument struct {
	Learner struct {
		Param struct {
			BaseScore  string `json:"base_score"`
			NumClass   string `json:"num_class"`
			NumFeature string `json:"num_feature"`
			NumTarget  string `json:"num_target"`
		} `json:"learner_model_param"`
		Booster struct {
			Name  string        `json:"name"`
			Model xgbGBTreeJSON `json:"model"`
		} `json:"gradient_booster"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

type xgbGBTreeJSON struct {
	Param struct {
		NumParallelTree string `json:"num_parallel_tree"`
	} `json:"gbtree_model_param"`
	Trees []xgbTreeJSON `json:"trees"`
}

type xgbTreeJSON struct {
	LeftChildren       []int32   `json:"left_children"`
	RightChildren      []int32   `json:"right_children"`
	SplitIndices       []int32   `json:"split_indices"`
	SplitConditions    []float32 `json:"split_conditions"`
	DefaultLeft        xgbFlags  `json:"default_left"`
	SplitType          []int     `json:"split_type"`
	Categories         []int32   `json:"categories"`
	CategoriesNodes    []int32   `json:"categories_nodes"`
	CategoriesSegments []int     `json:"categories_segments"`
	CategoriesSizes    []int     `json:"categories_sizes"`
}

// xgbFlags accepts default_left written either as booleans or as 0/1.
type xgbFlags []bool

func (f *xgbFlags) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, v := range raw {
		switch t := v.(type) {
		case bool:
			out[i] = t
		case float64:
			out[i] = t != 0
		default:
			return fmt.Errorf("default_left[%d]: unexpected %T", i, v)
		}
	}
	*f = out
	return nil
}

type xgbNode struct {
	left, right int32
	feature     int32
	cond        float32 // split threshold, or the leaf value when left < 0
	defaultLeft bool
	categorical bool
	cats        []uint64 // categories routed to the right child
}

func (n *xgbNode) inCategories(v float64) bool {
	if v < 0 {
		return false
	}
	c := uint64(v)
	word := c / 64
	if word >= uint64(len(n.cats)) {
		return false
	}
	return n.cats[word]&(1<<(c%64)) != 0
}

type xgbTree struct {
	nodes []xgbNode
}

func (t *xgbTree) predict(fvals []float64) float32 {
	i := int32(0)
	for {
		n := &t.nodes[i]
		if n.left < 0 {
			return n.cond
		}
		v := fvals[n.feature]
		switch {
		case math.IsNaN(v):
			if n.defaultLeft {
				i = n.left
			} else {
				i = n.right
			}
		case n.categorical:
			if n.inCategories(v) {
				i = n.right
			} else {
				i = n.left
			}
		case float32(v) < n.cond:
			i = n.left
		default:
			i = n.right
		}
	}
}

// XGBoostJSON is a gradient boosted tree model read from XGBoost's JSON
// format, including categorical splits.
type XGBoostJSON struct {
	trees           []xgbTree
	baseScore       float32
	numFeatures     int
	numGroups       int
	numParallelTree int
}

func XGBoostJSONFromFile(path string) (*XGBoostJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return XGBoostJSONFromReader(f)
}

func XGBoostJSONFromReader(r io.Reader) (*XGBoostJSON, error) {
	var doc xgbDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode xgboost json: %w", err)
	}
	learner := doc.Learner
	if learner.Booster.Name != "gbtree" {
		return nil, fmt.Errorf("%w: xgboost booster %q", sweeperrors.ErrUnsupportedModel, learner.Booster.Name)
	}
	if !xgbIdentityObjectives[learner.Objective.Name] {
		return nil, fmt.Errorf("%w: xgboost objective %q", sweeperrors.ErrUnsupportedModel, learner.Objective.Name)
	}

	baseScore, err := parseXGBFloat(learner.Param.BaseScore)
	if err != nil {
		return nil, fmt.Errorf("base_score: %w", err)
	}
	numFeatures, err := parseXGBInt(learner.Param.NumFeature, 0)
	if err != nil || numFeatures <= 0 {
		return nil, fmt.Errorf("invalid num_feature %q", learner.Param.NumFeature)
	}
	numClass, err := parseXGBInt(learner.Param.NumClass, 0)
	if err != nil {
		return nil, fmt.Errorf("num_class: %w", err)
	}
	numTarget, err := parseXGBInt(learner.Param.NumTarget, 1)
	if err != nil {
		return nil, fmt.Errorf("num_target: %w", err)
	}
	parallel, err := parseXGBInt(learner.Booster.Model.Param.NumParallelTree, 1)
	if err != nil || parallel <= 0 {
		return nil, fmt.Errorf("invalid num_parallel_tree %q", learner.Booster.Model.Param.NumParallelTree)
	}

	m := &XGBoostJSON{
		baseScore:       baseScore,
		numFeatures:     numFeatures,
		numGroups:       max(1, numClass, numTarget),
		numParallelTree: parallel,
	}
	raw := learner.Booster.Model.Trees
	if len(raw) == 0 {
		return nil, fmt.Errorf("xgboost model has no trees")
	}
	if len(raw)%(parallel*m.numGroups) != 0 {
		return nil, fmt.Errorf("xgboost model has %d trees, not a multiple of %d per iteration",
			len(raw), parallel*m.numGroups)
	}
	m.trees = make([]xgbTree, len(raw))
	for i := range raw {
		t, err := buildXGBTree(&raw[i], numFeatures)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees[i] = t
	}
	return m, nil
}

func buildXGBTree(raw *xgbTreeJSON, numFeatures int) (xgbTree, error) {
	n := len(raw.LeftChildren)
	if n == 0 {
		return xgbTree{}, fmt.Errorf("no nodes")
	}
	if len(raw.RightChildren) != n || len(raw.SplitIndices) != n || len(raw.SplitConditions) != n ||
		len(raw.DefaultLeft) != n {
		return xgbTree{}, fmt.Errorf("node arrays differ in length")
	}
	if len(raw.SplitType) != 0 && len(raw.SplitType) != n {
		return xgbTree{}, fmt.Errorf("split_type has %d entries for %d nodes", len(raw.SplitType), n)
	}

	nodes := make([]xgbNode, n)
	for i := 0; i < n; i++ {
		left, right := raw.LeftChildren[i], raw.RightChildren[i]
		nodes[i] = xgbNode{
			left:        left,
			right:       right,
			feature:     raw.SplitIndices[i],
			cond:        raw.SplitConditions[i],
			defaultLeft: raw.DefaultLeft[i],
		}
		if left < 0 {
			continue
		}
		// children are always allocated after their parent
		if int(left) <= i || int(right) <= i || int(left) >= n || int(right) >= n {
			return xgbTree{}, fmt.Errorf("node %d has invalid children (%d, %d)", i, left, right)
		}
		if raw.SplitIndices[i] < 0 || int(raw.SplitIndices[i]) >= numFeatures {
			return xgbTree{}, fmt.Errorf("node %d splits on feature %d of %d", i, raw.SplitIndices[i], numFeatures)
		}
		if len(raw.SplitType) == n && raw.SplitType[i] == 1 {
			nodes[i].categorical = true
		}
	}

	if len(raw.CategoriesNodes) != len(raw.CategoriesSegments) || len(raw.CategoriesNodes) != len(raw.CategoriesSizes) {
		return xgbTree{}, fmt.Errorf("categorical arrays differ in length")
	}
	for j, nid := range raw.CategoriesNodes {
		if nid < 0 || int(nid) >= n || !nodes[nid].categorical {
			return xgbTree{}, fmt.Errorf("categories listed for non categorical node %d", nid)
		}
		start, size := raw.CategoriesSegments[j], raw.CategoriesSizes[j]
		if start < 0 || size < 0 || start+size > len(raw.Categories) {
			return xgbTree{}, fmt.Errorf("categories segment of node %d out of range", nid)
		}
		var cats []uint64
		for _, c := range raw.Categories[start : start+size] {
			if c < 0 {
				return xgbTree{}, fmt.Errorf("negative category %d at node %d", c, nid)
			}
			word := int(c) / 64
			for len(cats) <= word {
				cats = append(cats, 0)
			}
			cats[word] |= 1 << (uint(c) % 64)
		}
		nodes[nid].cats = cats
	}
	return xgbTree{nodes: nodes}, nil
}

func (m *XGBoostJSON) Name() string {
	return "xgboost.gbtree"
}

func (m *XGBoostJSON) NFeatures() int {
	return m.numFeatures
}

// NEstimators is the number of boosting iterations.
func (m *XGBoostJSON) NEstimators() int {
	return len(m.trees) / (m.numParallelTree * m.numGroups)
}

func (m *XGBoostJSON) NOutputGroups() int {
	return m.numGroups
}

// PredictDense scores nrows row-major rows, using the first nEstimators
// iterations (all when nEstimators <= 0).
func (m *XGBoostJSON) PredictDense(vals []float64, nrows, ncols int, predictions []float64, nEstimators, nThreads int) error {
	if m.numGroups != 1 {
		return fmt.Errorf("xgboost model has %d output groups, expected 1", m.numGroups)
	}
	if ncols < m.numFeatures {
		return fmt.Errorf("incorrect number of columns: %d < %d", ncols, m.numFeatures)
	}
	if len(vals) < nrows*ncols || len(predictions) < nrows {
		return fmt.Errorf("buffers too short for %d rows", nrows)
	}
	if nEstimators <= 0 || nEstimators > m.NEstimators() {
		nEstimators = m.NEstimators()
	}
	trees := m.trees[:nEstimators*m.numParallelTree]

	score := func(start, end int) {
		for r := start; r < end; r++ {
			fvals := vals[r*ncols : (r+1)*ncols]
			sum := m.baseScore
			for t := range trees {
				sum += trees[t].predict(fvals)
			}
			predictions[r] = float64(sum)
		}
	}
	if nThreads <= 1 || nrows <= xgbRowsPerTask {
		score(0, nrows)
		return nil
	}
	var g errgroup.Group
	g.SetLimit(nThreads)
	for start := 0; start < nrows; start += xgbRowsPerTask {
		start, end := start, min(start+xgbRowsPerTask, nrows)
		g.Go(func() error {
			score(start, end)
			return nil
		})
	}
	return g.Wait()
}

// parseXGBFloat reads a scalar written either plainly ("5E-1") or as a one
// element vector ("[5E-1]").
func parseXGBFloat(s string) (float32, error) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]"))
	if s == "" {
		return 0, nil
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func parseXGBInt(s string, fallback int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
