package catalog

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/pkg/models"
)

// Bounds on subtree queries.
const (
	MinSubtreeDepth = 1
	MaxSubtreeDepth = 32

	MinAPILimitPerGroup = 1
	MaxAPILimitPerGroup = 1000
)

// Sort modes for flattening a node's groups and APIs for display. Both
// use sort order (id tie-break) as the secondary key.
const (
	SortGroupsFirst = "groups"
	SortAPIsFirst   = "apis"
)

// SubtreeQuery selects a bounded-depth, filtered view of a project's
// group forest. Zero values pick the documented defaults.
type SubtreeQuery struct {
	ProjectID uint

	// RootID scopes the read to one group's subtree. Nil reads the whole
	// forest.
	RootID *uint

	// MaxDepth is measured in group edges from the root (the root itself
	// is depth 0). Nodes beyond it are excluded entirely, producing a
	// complete but shallower tree. 0 defaults to MaxSubtreeDepth.
	MaxDepth int

	// Method, Status and Search filter API leaves. Search matches name
	// and path case-insensitively.
	Method string
	Status string
	Search string

	// APILimitPerGroup caps the APIs returned per group. The cap applies
	// after filtering; TotalAPIs still reports the post-filter count.
	// 0 defaults to MaxAPILimitPerGroup.
	APILimitPerGroup int

	IncludeCurrentVersion bool

	// Sort selects groups-before-apis or apis-before-groups flattening.
	// Defaults to SortGroupsFirst.
	Sort string
}

// SubtreeNode is one group of the result view.
type SubtreeNode struct {
	Group models.Group `json:"group"`

	// APIs are the group's matching definitions, capped at the query's
	// per-group limit.
	APIs []models.API `json:"apis"`

	// TotalAPIs is the group's post-filter API count before the cap. It
	// is never fabricated: groups excluded by depth simply don't appear.
	TotalAPIs int `json:"totalApis"`

	Children []*SubtreeNode `json:"children"`
}

// Subtree is the result of a subtree query: a forest when no root was
// given, a single root node otherwise.
type Subtree struct {
	Roots []*SubtreeNode `json:"roots"`
	Sort  string         `json:"sort"`
}

// GetSubtree reads a bounded-depth, filtered tree view. It takes no
// locks: the two set-based reads (groups, then APIs of the included
// groups) run under the store's normal read consistency.
func GetSubtree(db *gorm.DB, q SubtreeQuery) (*Subtree, error) {
	if err := normalizeQuery(&q); err != nil {
		return nil, err
	}

	groups, err := models.GetAllProjectGroups(db, q.ProjectID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]*models.Group, len(groups))
	children := make(map[uint][]*models.Group)
	var roots []*models.Group
	for i := range groups {
		g := &groups[i]
		byID[g.ID] = g
		if g.ParentID == nil {
			roots = append(roots, g)
		} else {
			children[*g.ParentID] = append(children[*g.ParentID], g)
		}
	}

	var tops []*models.Group
	if q.RootID != nil {
		root, ok := byID[*q.RootID]
		if !ok {
			return nil, fmt.Errorf("group %d: %w", *q.RootID, ErrNotFound)
		}
		tops = []*models.Group{root}
	} else {
		tops = roots
	}

	// Depth-bounded assembly over the in-memory forest.
	var nodes []*SubtreeNode
	includedIDs := []uint{}
	var build func(g *models.Group, depth int) *SubtreeNode
	build = func(g *models.Group, depth int) *SubtreeNode {
		node := &SubtreeNode{Group: *g, APIs: []models.API{}, Children: []*SubtreeNode{}}
		includedIDs = append(includedIDs, g.ID)
		if depth < q.MaxDepth {
			for _, c := range children[g.ID] {
				node.Children = append(node.Children, build(c, depth+1))
			}
		}
		return node
	}
	for _, g := range tops {
		nodes = append(nodes, build(g, 0))
	}

	apisByGroup, totals, err := queryAPIs(db, q, includedIDs)
	if err != nil {
		return nil, err
	}

	var fill func(n *SubtreeNode)
	fill = func(n *SubtreeNode) {
		apis := apisByGroup[n.Group.ID]
		n.TotalAPIs = totals[n.Group.ID]
		if len(apis) > q.APILimitPerGroup {
			apis = apis[:q.APILimitPerGroup]
		}
		n.APIs = apis
		if n.APIs == nil {
			n.APIs = []models.API{}
		}
		for _, c := range n.Children {
			fill(c)
		}
	}
	for _, n := range nodes {
		fill(n)
	}

	// Under active filters, groups with no matching descendants are
	// pruned - except the explicit root, which always stays.
	if filtersActive(q) {
		pruned := make([]*SubtreeNode, 0, len(nodes))
		for _, n := range nodes {
			keepRoot := q.RootID != nil && n.Group.ID == *q.RootID
			if prune(n) || keepRoot {
				pruned = append(pruned, n)
			}
		}
		nodes = pruned
	}

	if nodes == nil {
		nodes = []*SubtreeNode{}
	}
	return &Subtree{Roots: nodes, Sort: q.Sort}, nil
}

// prune removes filtered-empty descendants in post-order and reports
// whether the node itself yields anything.
func prune(n *SubtreeNode) bool {
	kept := make([]*SubtreeNode, 0, len(n.Children))
	for _, c := range n.Children {
		if prune(c) {
			kept = append(kept, c)
		}
	}
	n.Children = kept
	return n.TotalAPIs > 0 || len(n.Children) > 0
}

// queryAPIs runs the filtered API read for the included groups and
// returns per-group results plus post-filter totals.
func queryAPIs(db *gorm.DB, q SubtreeQuery, groupIDs []uint) (
	map[uint][]models.API, map[uint]int, error,
) {
	apisByGroup := make(map[uint][]models.API)
	totals := make(map[uint]int)
	if len(groupIDs) == 0 {
		return apisByGroup, totals, nil
	}

	query := db.
		Where("group_id IN ?", groupIDs).
		Order("sort_order ASC, id ASC")
	if q.Method != "" {
		query = query.Where("method = ?", q.Method)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(path) LIKE ?", like, like)
	}
	if q.IncludeCurrentVersion {
		query = query.Preload("CurrentVersion")
	}

	var apis []models.API
	if err := query.Find(&apis).Error; err != nil {
		return nil, nil, err
	}

	for _, a := range apis {
		apisByGroup[a.GroupID] = append(apisByGroup[a.GroupID], a)
		totals[a.GroupID]++
	}
	return apisByGroup, totals, nil
}

func filtersActive(q SubtreeQuery) bool {
	return q.Method != "" || q.Status != "" || q.Search != ""
}

func normalizeQuery(q *SubtreeQuery) error {
	if q.MaxDepth == 0 {
		q.MaxDepth = MaxSubtreeDepth
	}
	if q.MaxDepth < MinSubtreeDepth || q.MaxDepth > MaxSubtreeDepth {
		return NewValidationError("maxDepth",
			fmt.Sprintf("must be between %d and %d", MinSubtreeDepth, MaxSubtreeDepth))
	}

	if q.APILimitPerGroup == 0 {
		q.APILimitPerGroup = MaxAPILimitPerGroup
	}
	if q.APILimitPerGroup < MinAPILimitPerGroup ||
		q.APILimitPerGroup > MaxAPILimitPerGroup {
		return NewValidationError("apiLimitPerGroup",
			fmt.Sprintf("must be between %d and %d",
				MinAPILimitPerGroup, MaxAPILimitPerGroup))
	}

	if q.Method != "" && !contains(models.APIMethods, q.Method) {
		return NewValidationError("apiMethod", "unknown method "+q.Method)
	}
	if q.Status != "" && !contains(models.APIStatuses, q.Status) {
		return NewValidationError("apiStatus", "unknown status "+q.Status)
	}

	switch q.Sort {
	case "":
		q.Sort = SortGroupsFirst
	case SortGroupsFirst, SortAPIsFirst:
	default:
		return NewValidationError("sort",
			fmt.Sprintf("must be %q or %q", SortGroupsFirst, SortAPIsFirst))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// FlatItem is one display entry of a flattened node.
type FlatItem struct {
	Group *SubtreeNode `json:"group,omitempty"`
	API   *models.API  `json:"api,omitempty"`
}

// Flatten orders a node's child groups and APIs for display according
// to the query's sort mode.
func Flatten(n *SubtreeNode, sort string) []FlatItem {
	items := make([]FlatItem, 0, len(n.Children)+len(n.APIs))
	appendGroups := func() {
		for _, c := range n.Children {
			items = append(items, FlatItem{Group: c})
		}
	}
	appendAPIs := func() {
		for i := range n.APIs {
			items = append(items, FlatItem{API: &n.APIs[i]})
		}
	}
	if sort == SortAPIsFirst {
		appendAPIs()
		appendGroups()
	} else {
		appendGroups()
		appendAPIs()
	}
	return items
}
