package executor

import (
	"testing"

	"github.com/graphfed/supergraph-planner/federation/planner"
)

func TestLevelsOf_OrdersByHappensBeforeEdges(t *testing.T) {
	dag := &planner.LogicalPlanDag{
		Plans: []planner.LogicalPlan{{ID: 0}, {ID: 1}, {ID: 2}},
		Roots: []planner.LogicalPlanID{0},
		Edges: []planner.ParentToChildEdge{
			{Parent: 0, Child: 1},
			{Parent: 0, Child: 2},
		},
	}

	levels, err := levelsOf(dag)
	if err != nil {
		t.Fatalf("levelsOf: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[0]) != 1 || levels[0][0] != 0 {
		t.Fatalf("level 0 should be [0], got %v", levels[0])
	}
	if len(levels[1]) != 2 || levels[1][0] != 1 || levels[1][1] != 2 {
		t.Fatalf("level 1 should be [1, 2], got %v", levels[1])
	}
}

func TestLevelsOf_SingleLevelWhenNoEdges(t *testing.T) {
	dag := &planner.LogicalPlanDag{
		Plans: []planner.LogicalPlan{{ID: 0}, {ID: 1}},
		Roots: []planner.LogicalPlanID{0, 1},
	}
	levels, err := levelsOf(dag)
	if err != nil {
		t.Fatalf("levelsOf: %v", err)
	}
	if len(levels) != 1 || len(levels[0]) != 2 {
		t.Fatalf("expected a single level of 2 plans, got %v", levels)
	}
}

func TestLevelsOf_DetectsCycle(t *testing.T) {
	dag := &planner.LogicalPlanDag{
		Plans: []planner.LogicalPlan{{ID: 0}, {ID: 1}},
		Edges: []planner.ParentToChildEdge{
			{Parent: 0, Child: 1},
			{Parent: 1, Child: 0},
		},
	}
	if _, err := levelsOf(dag); err == nil {
		t.Fatalf("expected a cycle error")
	}
}
