// Package lolf builds the aggregated State → Mission → Programme → Action →
// Sous-action hierarchy from canonical budget rows.
package lolf

import (
	"sort"

	"github.com/SorbetUP/BudgetExplorer/internal/normalize"
)

// Level is the depth of a node in the LOLF classification.
type Level string

const (
	LevelState     Level = "etat"
	LevelMission   Level = "mission"
	LevelProgramme Level = "programme"
	LevelAction    Level = "action"
	LevelSubAction Level = "sous_action"
)

// Node is one aggregate in the hierarchy. After Aggregate, AE and CP hold
// the node's directly attributed amount plus the sum of all descendants,
// and Children is sorted by CP descending.
type Node struct {
	Code     string  `json:"code,omitempty"`
	Name     string  `json:"name"`
	Level    Level   `json:"level"`
	AE       float64 `json:"ae"`
	CP       float64 `json:"cp"`
	Children []*Node `json:"children,omitempty"`
}

// Sources records where the tree's rows came from.
type Sources struct {
	DatasetID string `json:"datasetId"`
	License   string `json:"license"`
}

// Tree is the final per-year artifact.
type Tree struct {
	*Node
	Year    int      `json:"year"`
	Sources *Sources `json:"sources,omitempty"`
}

// Builder folds canonical rows into a tree, one insert-or-merge per row.
// Node identity within a parent is (code-or-name, level); keyed lookups
// replace child-list scans so large datasets fold in linear time.
type Builder struct {
	root  *Node
	index map[string]*Node // full path key -> node
}

// NewBuilder creates a builder with an empty State root.
func NewBuilder() *Builder {
	return &Builder{
		root:  &Node{Name: "État", Level: LevelState},
		index: make(map[string]*Node),
	}
}

// UnknownMission labels rows carrying programme information but no mission.
const UnknownMission = "Mission non renseignée"

// Add places one row into the tree, attributing its amounts to the deepest
// node the row describes. Rows with neither mission nor programme
// information cannot be placed and are dropped; rows with a programme but
// no mission land under a placeholder mission, so no node ever gets a
// blank name.
func (b *Builder) Add(r normalize.Row) {
	if !r.Placeable() {
		return
	}

	mCode, mName := r.MissionCode, r.Mission
	if mCode == "" && mName == "" {
		mName = UnknownMission
	}
	mKey := keyOf(mCode, mName)
	mission := b.child(b.root, mKey, mCode, mName, LevelMission)

	leaf := mission
	if r.ProgrammeCode != "" || r.Programme != "" {
		pKey := mKey + "::" + keyOf(r.ProgrammeCode, r.Programme)
		programme := b.child(mission, pKey, r.ProgrammeCode, r.Programme, LevelProgramme)

		leaf = programme
		if r.ActionCode != "" || r.Action != "" {
			aKey := pKey + "::" + keyOf(r.ActionCode, r.Action)
			action := b.child(programme, aKey, r.ActionCode, r.Action, LevelAction)

			leaf = action
			if r.SubActionCode != "" || r.SubAction != "" {
				sKey := aKey + "::" + keyOf(r.SubActionCode, r.SubAction)
				leaf = b.child(action, sKey, r.SubActionCode, r.SubAction, LevelSubAction)
			}
		}
	}

	leaf.AE += r.AE
	leaf.CP += r.CP
}

// Build runs the bottom-up aggregation pass and returns the root. The tree
// must not be modified afterwards.
func (b *Builder) Build(year int) *Tree {
	aggregate(b.root)
	return &Tree{Node: b.root, Year: year}
}

// BuildTree folds all rows and aggregates in one call.
func BuildTree(rows []normalize.Row, year int) *Tree {
	b := NewBuilder()
	for _, r := range rows {
		b.Add(r)
	}
	return b.Build(year)
}

func (b *Builder) child(parent *Node, key, code, name string, level Level) *Node {
	if n, ok := b.index[key]; ok {
		return n
	}
	n := &Node{Code: code, Name: name, Level: level}
	if n.Name == "" {
		n.Name = code
	}
	parent.Children = append(parent.Children, n)
	b.index[key] = n
	return n
}

func keyOf(code, name string) string {
	if code != "" {
		return code
	}
	return name
}

// aggregate sums descendants into each node and sorts siblings by CP
// descending. One traversal, two guarantees.
func aggregate(n *Node) (ae, cp float64) {
	ae, cp = n.AE, n.CP
	for _, c := range n.Children {
		cae, ccp := aggregate(c)
		ae += cae
		cp += ccp
	}
	n.AE, n.CP = ae, cp
	sort.SliceStable(n.Children, func(i, j int) bool {
		return n.Children[i].CP > n.Children[j].CP
	})
	return ae, cp
}
