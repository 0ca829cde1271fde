package openapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/iancoleman/strcase"
	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/pkg/catalog"
	"github.com/apiforge-io/apiforge/pkg/models"
)

// ConflictStrategy selects how an imported operation that collides with
// an existing API by (path, method) is handled.
type ConflictStrategy string

const (
	// StrategySkip leaves the existing API untouched.
	StrategySkip ConflictStrategy = "skip"

	// StrategyOverwrite replaces the existing API's definition fields in
	// place, appending a new version when the shape changed.
	StrategyOverwrite ConflictStrategy = "overwrite"

	// StrategyRename creates a new API with a disambiguated name/path
	// alongside the existing one.
	StrategyRename ConflictStrategy = "rename"
)

// Valid reports whether the strategy is one of the accepted values.
func (s ConflictStrategy) Valid() bool {
	switch s {
	case StrategySkip, StrategyOverwrite, StrategyRename:
		return true
	}
	return false
}

// defaultGroupName holds untagged operations when the import has no
// explicit target group. APIs always live inside a group.
const defaultGroupName = "Default"

// initialVersionTag is assigned to the first version of an imported API.
const initialVersionTag = "v1.0.0"

// ImportRequest scopes one import run.
type ImportRequest struct {
	ProjectID uint

	// TargetGroupID is the group tag-derived groups are created under
	// and untagged operations land in. Nil targets the forest root.
	TargetGroupID *uint

	Strategy ConflictStrategy

	// CreateMissingGroups materializes groups absent from the tree to
	// mirror the document's tag structure. Materialization is idempotent:
	// re-running the same import reuses groups a prior run created.
	CreateMissingGroups bool
}

// Plan actions proposed for an operation during preview.
const (
	PlanCreate    = "create"
	PlanSkip      = "skip"
	PlanOverwrite = "overwrite"
	PlanRename    = "rename"
)

// Committed outcomes per operation.
const (
	OutcomeCreated     = "created"
	OutcomeOverwritten = "overwritten"
	OutcomeRenamed     = "renamed"
	OutcomeSkipped     = "skipped"
)

// PlanEntry is the proposed handling of one operation.
type PlanEntry struct {
	Operation    Operation `json:"operation"`
	GroupName    string    `json:"groupName"`
	MatchedAPIID *uint     `json:"matchedExistingApiId,omitempty"`
	Action       string    `json:"proposedAction"`
}

// Plan enumerates the proposed import without committing anything.
type Plan struct {
	Entries []PlanEntry `json:"entries"`

	// MissingGroups lists tag-derived groups the execute step would
	// create, in first-use order.
	MissingGroups []string `json:"missingGroups,omitempty"`
}

// ResultEntry is the committed outcome of one operation.
type ResultEntry struct {
	Operation Operation `json:"operation"`
	Outcome   string    `json:"outcome"`
	APIID     uint      `json:"apiId,omitempty"`

	// Path is the final path, which differs from the operation's when
	// the rename strategy disambiguated it.
	Path string `json:"path,omitempty"`
}

// Result is the committed outcome of an import run.
type Result struct {
	RunID           uuid.UUID     `json:"runId"`
	Entries         []ResultEntry `json:"entries"`
	CreatedGroupIDs []uint        `json:"createdGroupIds,omitempty"`
}

// Reconciler matches parsed operations against a project's existing
// catalog and applies the conflict strategy.
type Reconciler struct {
	log hclog.Logger
}

// NewReconciler returns a reconciler that logs through the given
// logger.
func NewReconciler(log hclog.Logger) *Reconciler {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Reconciler{log: log}
}

// Plan performs group resolution and matching without persistence and
// returns the proposed per-operation actions.
func (r *Reconciler) Plan(db *gorm.DB, req ImportRequest, doc *Document) (*Plan, error) {
	if err := r.validate(db, req, doc); err != nil {
		return nil, err
	}

	existing, err := r.loadGroupKeys(db, req)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Entries: []PlanEntry{}}
	missing := map[string]bool{}

	for _, op := range doc.Operations {
		groupName := firstTag(op)
		if key := groupKey(groupName); req.CreateMissingGroups &&
			groupName != "" && !existing[key] && !missing[key] {
			missing[key] = true
			plan.MissingGroups = append(plan.MissingGroups, groupName)
		}

		// Untagged operations with no target group land in the default
		// group, which Execute materializes on demand.
		if groupName == "" && req.TargetGroupID == nil {
			if key := groupKey(defaultGroupName); !existing[key] && !missing[key] {
				missing[key] = true
				plan.MissingGroups = append(plan.MissingGroups, defaultGroupName)
			}
		}

		entry := PlanEntry{Operation: op, GroupName: groupName, Action: PlanCreate}
		match, err := models.GetAPIByPathMethod(db, req.ProjectID, op.Path, op.Method)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if match != nil {
			entry.MatchedAPIID = &match.ID
			switch req.Strategy {
			case StrategySkip:
				entry.Action = PlanSkip
			case StrategyOverwrite:
				entry.Action = PlanOverwrite
			case StrategyRename:
				entry.Action = PlanRename
			}
		}
		plan.Entries = append(plan.Entries, entry)
	}

	return plan, nil
}

// Execute applies the import atomically: either every create, update
// and group materialization commits, or none do.
func (r *Reconciler) Execute(db *gorm.DB, req ImportRequest, doc *Document) (*Result, error) {
	if err := r.validate(db, req, doc); err != nil {
		return nil, err
	}

	result := &Result{RunID: uuid.New(), Entries: []ResultEntry{}}

	err := db.Transaction(func(tx *gorm.DB) error {
		groups, err := newGroupResolver(tx, req)
		if err != nil {
			return err
		}

		for _, op := range doc.Operations {
			entry, err := r.applyOperation(tx, req, groups, op)
			if err != nil {
				return err
			}
			result.Entries = append(result.Entries, entry)
		}

		result.CreatedGroupIDs = groups.created
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("openapi import executed",
		"run_id", result.RunID,
		"project_id", req.ProjectID,
		"strategy", req.Strategy,
		"operations", len(result.Entries),
		"created_groups", len(result.CreatedGroupIDs),
	)
	return result, nil
}

func (r *Reconciler) applyOperation(
	tx *gorm.DB, req ImportRequest, groups *groupResolver, op Operation,
) (ResultEntry, error) {
	match, err := models.GetAPIByPathMethod(tx, req.ProjectID, op.Path, op.Method)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ResultEntry{}, err
	}

	if match == nil {
		groupID, err := groups.resolve(tx, firstTag(op), req.CreateMissingGroups)
		if err != nil {
			return ResultEntry{}, err
		}
		api, err := r.createAPI(tx, req.ProjectID, groupID, op, op.Path, op.Name)
		if err != nil {
			return ResultEntry{}, err
		}
		return ResultEntry{
			Operation: op, Outcome: OutcomeCreated, APIID: api.ID, Path: api.Path,
		}, nil
	}

	switch req.Strategy {
	case StrategySkip:
		return ResultEntry{
			Operation: op, Outcome: OutcomeSkipped, APIID: match.ID, Path: match.Path,
		}, nil

	case StrategyOverwrite:
		if err := r.overwriteAPI(tx, match, op); err != nil {
			return ResultEntry{}, err
		}
		return ResultEntry{
			Operation: op, Outcome: OutcomeOverwritten, APIID: match.ID, Path: match.Path,
		}, nil

	case StrategyRename:
		path, err := catalog.DisambiguatePath(tx, req.ProjectID, op.Path, op.Method)
		if err != nil {
			return ResultEntry{}, err
		}
		groupID, err := groups.resolve(tx, firstTag(op), req.CreateMissingGroups)
		if err != nil {
			return ResultEntry{}, err
		}
		api, err := r.createAPI(tx, req.ProjectID, groupID, op, path,
			catalog.DisambiguateName(op.Name, pathIndex(path)))
		if err != nil {
			return ResultEntry{}, err
		}
		return ResultEntry{
			Operation: op, Outcome: OutcomeRenamed, APIID: api.ID, Path: api.Path,
		}, nil
	}

	return ResultEntry{}, fmt.Errorf("unhandled strategy %q", req.Strategy)
}

// createAPI creates an imported definition, appends its initial version
// when the document carries shapes, and repoints the current version.
func (r *Reconciler) createAPI(
	tx *gorm.DB, projectID, groupID uint, op Operation, path, name string,
) (*models.API, error) {
	order, err := catalog.NextAPISortOrder(tx, groupID)
	if err != nil {
		return nil, err
	}

	api := &models.API{
		ProjectID: projectID,
		GroupID:   groupID,
		Name:      name,
		Path:      path,
		Method:    op.Method,
		Status:    models.APIStatusDraft,
		SortOrder: order,
		Imported:  true,
	}
	if err := api.Create(tx); err != nil {
		return nil, err
	}

	if op.RequestShape != nil || op.ResponseShape != nil {
		version := &models.APIVersion{
			APIID:         api.ID,
			VersionTag:    initialVersionTag,
			RequestShape:  op.RequestShape,
			ResponseShape: op.ResponseShape,
		}
		if err := version.Create(tx); err != nil {
			return nil, err
		}
		api.CurrentVersionID = &version.ID
		if err := tx.Model(&models.API{}).
			Where("id = ?", api.ID).
			Update("current_version_id", version.ID).
			Error; err != nil {
			return nil, err
		}
	}

	return api, nil
}

// overwriteAPI replaces the definition fields of an existing API in
// place and appends a new version only when the shape changed, so
// repeated overwrite imports converge instead of accumulating versions.
func (r *Reconciler) overwriteAPI(tx *gorm.DB, api *models.API, op Operation) error {
	updates := map[string]interface{}{
		"name":     op.Name,
		"imported": true,
	}

	current, err := models.GetLatestAPIVersion(tx, api.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	shapeChanged := current == nil ||
		!current.RequestShape.Equal(op.RequestShape) ||
		!current.ResponseShape.Equal(op.ResponseShape)
	hasShape := op.RequestShape != nil || op.ResponseShape != nil

	if hasShape && shapeChanged {
		tag := initialVersionTag
		if current != nil {
			tag = bumpPatch(current.VersionTag)
		}
		version := &models.APIVersion{
			APIID:         api.ID,
			VersionTag:    tag,
			RequestShape:  op.RequestShape,
			ResponseShape: op.ResponseShape,
		}
		if err := version.Create(tx); err != nil {
			return err
		}
		updates["current_version_id"] = version.ID
	}

	return tx.Model(&models.API{}).
		Where("id = ?", api.ID).
		Updates(updates).
		Error
}

// firstTag derives the target group name for an operation: the first
// tag wins; untagged operations go to the import's target group, or the
// default group at the forest root.
func firstTag(op Operation) string {
	for _, tag := range op.Tags {
		if name := strings.TrimSpace(tag); name != "" {
			return name
		}
	}
	return ""
}

func (r *Reconciler) validate(db *gorm.DB, req ImportRequest, doc *Document) error {
	if !req.Strategy.Valid() {
		return catalog.NewValidationError("conflictStrategy",
			`must be "skip", "overwrite" or "rename"`)
	}
	if req.ProjectID == 0 {
		return catalog.NewValidationError("projectId", "cannot be blank")
	}
	if doc == nil {
		return fmt.Errorf("no document: %w", ErrParse)
	}

	if req.TargetGroupID != nil {
		target := &models.Group{}
		if err := target.Get(db, *req.TargetGroupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("group %d: %w", *req.TargetGroupID, catalog.ErrNotFound)
			}
			return err
		}
		if target.ProjectID != req.ProjectID {
			return fmt.Errorf("group %d: %w", *req.TargetGroupID, catalog.ErrNotFound)
		}
	}

	// Operation-level problems are aggregated so a preview reports the
	// whole document at once.
	var problems *multierror.Error
	for i, op := range doc.Operations {
		if !strings.HasPrefix(op.Path, "/") {
			problems = multierror.Append(problems,
				fmt.Errorf("operation %d: path %q must start with /", i, op.Path))
		}
		if !validMethod(op.Method) {
			problems = multierror.Append(problems,
				fmt.Errorf("operation %d: unknown method %q", i, op.Method))
		}
	}
	if err := problems.ErrorOrNil(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrParse)
	}
	return nil
}

func validMethod(method string) bool {
	for _, m := range models.APIMethods {
		if m == method {
			return true
		}
	}
	return false
}

// groupResolver materializes and caches target groups during execute.
// Keys are format-insensitive so "userManagement" and "User Management"
// resolve to the same group across runs.
type groupResolver struct {
	req     ImportRequest
	keys    map[string]uint
	baseID  *uint
	created []uint
}

func newGroupResolver(tx *gorm.DB, req ImportRequest) (*groupResolver, error) {
	gr := &groupResolver{req: req, keys: map[string]uint{}}

	siblings, err := models.GetGroupChildren(tx, req.ProjectID, req.TargetGroupID)
	if err != nil {
		return nil, err
	}
	for _, g := range siblings {
		gr.keys[groupKey(g.Name)] = g.ID
	}
	return gr, nil
}

// resolve returns the group an operation lands in, creating tag-derived
// groups when allowed. Untagged operations land in the target group, or
// an idempotently created default group when the import targets the
// forest root.
func (gr *groupResolver) resolve(tx *gorm.DB, name string, createMissing bool) (uint, error) {
	if name != "" {
		if id, ok := gr.keys[groupKey(name)]; ok {
			return id, nil
		}
		if createMissing {
			return gr.materialize(tx, name)
		}
	}

	if gr.req.TargetGroupID != nil {
		return *gr.req.TargetGroupID, nil
	}
	if gr.baseID != nil {
		return *gr.baseID, nil
	}
	if id, ok := gr.keys[groupKey(defaultGroupName)]; ok {
		gr.baseID = &id
		return id, nil
	}
	id, err := gr.materialize(tx, defaultGroupName)
	if err != nil {
		return 0, err
	}
	gr.baseID = &id
	return id, nil
}

func (gr *groupResolver) materialize(tx *gorm.DB, name string) (uint, error) {
	order, err := catalog.NextGroupSortOrder(tx, gr.req.ProjectID, gr.req.TargetGroupID)
	if err != nil {
		return 0, err
	}

	group := &models.Group{
		ProjectID: gr.req.ProjectID,
		ParentID:  gr.req.TargetGroupID,
		Name:      name,
		SortOrder: order,
	}
	if err := group.Create(tx); err != nil {
		return 0, err
	}

	gr.keys[groupKey(name)] = group.ID
	gr.created = append(gr.created, group.ID)
	return group.ID, nil
}

// groupKey normalizes a group or tag name for matching.
func groupKey(name string) string {
	return strcase.ToSnake(strings.TrimSpace(name))
}

// loadGroupKeys returns the existing sibling keys under the import
// target, for preview reporting of missing groups.
func (r *Reconciler) loadGroupKeys(db *gorm.DB, req ImportRequest) (map[string]bool, error) {
	siblings, err := models.GetGroupChildren(db, req.ProjectID, req.TargetGroupID)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(siblings))
	for _, g := range siblings {
		keys[groupKey(g.Name)] = true
	}
	return keys, nil
}

// bumpPatch increments the patch component of a vX.Y.Z tag. Tags that
// fail to parse restart at the initial tag.
func bumpPatch(tag string) string {
	var major, minor, patch int
	if _, err := fmt.Sscanf(tag, "v%d.%d.%d", &major, &minor, &patch); err != nil {
		return initialVersionTag
	}
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch+1)
}

// pathIndex extracts the numeric suffix of a disambiguated path for
// reuse in the renamed API's display name.
func pathIndex(path string) int {
	i := strings.LastIndex(path, "-")
	if i < 0 {
		return 2
	}
	var n int
	if _, err := fmt.Sscanf(path[i:], "-%d", &n); err != nil || n < 2 {
		return 2
	}
	return n
}
