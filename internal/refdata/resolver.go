// Package refdata resolves and caches the per-project lookup data used
// to render an issue form.
package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source"
)

// Resolver fetches reference data from a tracker. Fetches for one
// project run concurrently and either all succeed or the whole
// resolution fails.
type Resolver struct {
	src   source.ReferenceSource
	cache *Cache
	log   logr.Logger

	// remoteCustomFields enables /custom_fields.json when no
	// definitions are configured.
	remoteCustomFields bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache keeps the project-scoped sets in c; a project resolved
// before is served from c instead of the tracker.
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithRemoteCustomFields allows fetching custom field definitions from
// the tracker.
func WithRemoteCustomFields(enabled bool) Option {
	return func(r *Resolver) { r.remoteCustomFields = enabled }
}

// NewResolver creates a Resolver over src.
func NewResolver(src source.ReferenceSource, opts ...Option) *Resolver {
	r := &Resolver{src: src, log: logr.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Project fetches the trackers, versions and members of projectID, or
// returns them from the cache.
func (r *Resolver) Project(ctx context.Context, projectID int) (*model.ReferenceSet, error) {
	return r.resolve(ctx, projectID, false)
}

// Initial fetches everything needed to open a form on projectID: the
// project-scoped sets plus every project and status. A zero projectID
// skips the project-scoped fetches.
func (r *Resolver) Initial(ctx context.Context, projectID int) (*model.ReferenceSet, error) {
	return r.resolve(ctx, projectID, true)
}

func (r *Resolver) resolve(ctx context.Context, projectID int, initial bool) (*model.ReferenceSet, error) {
	set := &model.ReferenceSet{ProjectID: projectID}

	cached := false
	if r.cache != nil && projectID > 0 {
		if hit, ok := r.cache.Get(projectID); ok {
			set.Trackers, set.Versions, set.Members = hit.Trackers, hit.Versions, hit.Members
			cached = true
		}
	}
	if cached && !initial {
		r.log.V(1).Info("reference data from cache", "project", projectID)
		return set, nil
	}

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	if projectID > 0 && !cached {
		p.Go(func(ctx context.Context) error {
			trackers, err := r.src.Trackers(ctx, projectID)
			set.Trackers = trackers
			return err
		})
		p.Go(func(ctx context.Context) error {
			versions, err := r.src.Versions(ctx, projectID)
			set.Versions = versions
			return err
		})
		p.Go(func(ctx context.Context) error {
			members, err := r.src.Members(ctx, projectID)
			set.Members = members
			return err
		})
	}
	if initial {
		p.Go(func(ctx context.Context) error {
			projects, err := r.src.Projects(ctx)
			set.Projects = projects
			return err
		})
		p.Go(func(ctx context.Context) error {
			statuses, err := r.src.Statuses(ctx)
			set.Statuses = statuses
			return err
		})
	}

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("resolving reference data for project %d: %w", projectID, err)
	}

	r.log.V(1).Info("resolved reference data", "project", projectID,
		"trackers", len(set.Trackers), "versions", len(set.Versions),
		"members", len(set.Members), "initial", initial)

	if r.cache != nil && projectID > 0 && !cached {
		r.cache.Put(scoped(set))
	}
	return set, nil
}

// scoped copies the project-scoped part of set.
func scoped(set *model.ReferenceSet) *model.ReferenceSet {
	return &model.ReferenceSet{
		ProjectID: set.ProjectID,
		Trackers:  set.Trackers,
		Versions:  set.Versions,
		Members:   set.Members,
	}
}

// CustomFields returns the custom field definitions to render. The
// configured JSON wins when it holds any definition; an unparsable
// value yields no definitions. Otherwise definitions are fetched from
// the tracker when remote fetching is enabled.
func (r *Resolver) CustomFields(ctx context.Context, configured string) ([]model.CustomFieldDefinition, error) {
	defs, err := ParseCustomFields(configured)
	if err != nil {
		r.log.Error(err, "ignoring configured custom fields")
		return nil, nil
	}
	if len(defs) > 0 || !r.remoteCustomFields {
		return defs, nil
	}

	defs, err = r.src.CustomFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving custom fields: %w", err)
	}

	var issueFields []model.CustomFieldDefinition
	for _, d := range defs {
		if d.CustomizedType == "" || d.CustomizedType == "issue" {
			issueFields = append(issueFields, d)
		}
	}
	return issueFields, nil
}

// ParseCustomFields decodes custom field definitions given either as an
// array or as an object with a custom_fields member.
func ParseCustomFields(raw string) ([]model.CustomFieldDefinition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var defs []model.CustomFieldDefinition
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &defs); err != nil {
			return nil, fmt.Errorf("parsing custom fields: %w", err)
		}
		return defs, nil
	}

	var wrapped struct {
		CustomFields []model.CustomFieldDefinition `json:"custom_fields"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("parsing custom fields: %w", err)
	}
	return wrapped.CustomFields, nil
}

// Cache holds one ReferenceSet per project for a session. A set is
// replaced as a whole, never merged.
type Cache struct {
	mu   sync.RWMutex
	sets map[int]*model.ReferenceSet
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{sets: make(map[int]*model.ReferenceSet)}
}

// Get returns the cached set for projectID.
func (c *Cache) Get(projectID int) (*model.ReferenceSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.sets[projectID]
	return set, ok
}

// Put replaces the cached set for set.ProjectID.
func (c *Cache) Put(set *model.ReferenceSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[set.ProjectID] = set
}

// Clear drops every cached set.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = make(map[int]*model.ReferenceSet)
}
