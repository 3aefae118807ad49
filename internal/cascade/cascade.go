// Package cascade implements the dependent-selection state machine over the
// catalog hierarchy Project → Building → Apartment, with the optional
// Storage/Parking/Commercial branches attached at the project level.
//
// Choosing a parent refetches the child option sets and clears every
// descendant selection in the same logical update. Overlapping transitions
// are serialized by a generation token: each fetching transition stamps a
// monotonically increasing generation and applies its result only if no
// newer transition has started since. Stale completions are dropped, never
// merged.
package cascade

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"intake/internal/catalog"
	"intake/internal/platform/metrics"
	dErrors "intake/pkg/domain-errors"
)

// ErrSuperseded reports that a newer transition overtook this one while its
// fetch was in flight. The newer transition's result stands; callers treat
// this as a no-op, not a failure.
var ErrSuperseded = errors.New("transition superseded by a newer selection")

// Selection is the current choice at every level. A non-empty BuildingID
// implies a non-empty ProjectID; a non-empty ApartmentID implies a
// non-empty BuildingID.
type Selection struct {
	ProjectID    catalog.ItemID `json:"project_id,omitempty"`
	BuildingID   catalog.ItemID `json:"building_id,omitempty"`
	ApartmentID  catalog.ItemID `json:"apartment_id,omitempty"`
	StorageID    catalog.ItemID `json:"storage_id,omitempty"`
	ParkingID    catalog.ItemID `json:"parking_id,omitempty"`
	CommercialID catalog.ItemID `json:"commercial_id,omitempty"`
}

// Cascade is the per-operator selection state machine. Methods are safe for
// concurrent use; fetches run outside the lock so a newer transition can
// overtake a stalled one.
type Cascade struct {
	client  catalog.Client
	schema  catalog.Schema
	logger  *slog.Logger
	metrics *metrics.Metrics
	sorter  *sorter

	mu         sync.Mutex
	generation uint64
	sel        Selection
	opts       OptionSets
}

// New creates a Cascade bound to a catalog client and schema. The locale
// tag drives option-set collation. metrics may be nil.
func New(client catalog.Client, schema catalog.Schema, locale language.Tag, logger *slog.Logger, m *metrics.Metrics) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{
		client:  client,
		schema:  schema,
		logger:  logger,
		metrics: m,
		sorter:  newSorter(locale),
	}
}

// Selection returns a copy of the current selection.
func (c *Cascade) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// Options returns a copy of the current option sets.
func (c *Cascade) Options() OptionSets {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// LoadProjects fills the project option set from the full board listing.
// Projects preserve catalog insertion order; no collation is applied.
func (c *Cascade) LoadProjects(ctx context.Context) error {
	gen := c.begin(func() {})

	items, err := c.client.ListAll(ctx, c.schema.Boards.Projects)
	if err != nil {
		c.metrics.ObserveCascadeTransition("projects_load", err)
		return err
	}

	err = c.apply(gen, func() {
		c.opts.Projects = optionsFromItems(items)
	})
	c.metrics.ObserveCascadeTransition("projects_load", err)
	return err
}

// ChooseProject sets or clears the project selection. An empty id resets the
// machine to its initial state below the project list. A present id clears
// every descendant selection, fetches the project's four relation columns,
// resolves names concurrently, and installs all four option sets atomically;
// if any lookup fails the transition fails and no partial sets are shown.
func (c *Cascade) ChooseProject(ctx context.Context, id catalog.ItemID) error {
	gen := c.begin(func() {
		c.sel.ProjectID = id
		c.sel.BuildingID = ""
		c.sel.ApartmentID = ""
		c.sel.StorageID = ""
		c.sel.ParkingID = ""
		c.sel.CommercialID = ""
		c.opts.Buildings = nil
		c.opts.Apartments = nil
		c.opts.Storages = nil
		c.opts.Parkings = nil
		c.opts.Commercials = nil
	})
	if id == "" {
		c.metrics.ObserveCascadeTransition("project", nil)
		return nil
	}

	relations, err := c.client.LinkedIDs(ctx, id, c.schema.ProjectRelations())
	if err != nil {
		c.metrics.ObserveCascadeTransition("project", err)
		return err
	}

	cols := c.schema.Columns
	var buildings, storages, parkings, commercials []catalog.Item
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		buildings, err = c.client.Names(gctx, relations[cols.ProjectBuildings])
		return err
	})
	g.Go(func() (err error) {
		storages, err = c.client.Names(gctx, relations[cols.ProjectStorage])
		return err
	})
	g.Go(func() (err error) {
		parkings, err = c.client.Names(gctx, relations[cols.ProjectParking])
		return err
	})
	g.Go(func() (err error) {
		commercials, err = c.client.Names(gctx, relations[cols.ProjectCommercial])
		return err
	})
	if err := g.Wait(); err != nil {
		c.metrics.ObserveCascadeTransition("project", err)
		return err
	}

	err = c.apply(gen, func() {
		c.opts.Buildings = c.sorter.sort(optionsFromItems(buildings))
		c.opts.Storages = c.sorter.sort(optionsFromItems(storages))
		c.opts.Parkings = c.sorter.sort(optionsFromItems(parkings))
		c.opts.Commercials = c.sorter.sort(optionsFromItems(commercials))
	})
	c.metrics.ObserveCascadeTransition("project", err)
	return err
}

// ChooseBuilding sets or clears the building selection, symmetric to
// ChooseProject one level down. Apartment labels prefer the apartment
// number text column and fall back to the item name.
func (c *Cascade) ChooseBuilding(ctx context.Context, id catalog.ItemID) error {
	c.mu.Lock()
	if id != "" && c.sel.ProjectID == "" {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, "choose a project before a building")
	}
	c.mu.Unlock()

	gen := c.begin(func() {
		c.sel.BuildingID = id
		c.sel.ApartmentID = ""
		c.opts.Apartments = nil
	})
	if id == "" {
		c.metrics.ObserveCascadeTransition("building", nil)
		return nil
	}

	cols := c.schema.Columns
	relations, err := c.client.LinkedIDs(ctx, id, []catalog.ColumnID{cols.BuildingApartments})
	if err != nil {
		c.metrics.ObserveCascadeTransition("building", err)
		return err
	}

	apartments, err := c.client.ItemTexts(ctx, relations[cols.BuildingApartments], cols.ApartmentNumberText)
	if err != nil {
		c.metrics.ObserveCascadeTransition("building", err)
		return err
	}

	err = c.apply(gen, func() {
		c.opts.Apartments = c.sorter.sort(optionsFromTexts(apartments))
	})
	c.metrics.ObserveCascadeTransition("building", err)
	return err
}

// ChooseApartment sets or clears the apartment selection. Leaf transition:
// no cascade, no fetch.
func (c *Cascade) ChooseApartment(id catalog.ItemID) error {
	return c.chooseLeaf("apartment", id, func() (*catalog.ItemID, catalog.ItemID) {
		return &c.sel.ApartmentID, c.sel.BuildingID
	})
}

// ChooseStorage sets or clears the storage selection.
func (c *Cascade) ChooseStorage(id catalog.ItemID) error {
	return c.chooseLeaf("storage", id, func() (*catalog.ItemID, catalog.ItemID) {
		return &c.sel.StorageID, c.sel.ProjectID
	})
}

// ChooseParking sets or clears the parking selection.
func (c *Cascade) ChooseParking(id catalog.ItemID) error {
	return c.chooseLeaf("parking", id, func() (*catalog.ItemID, catalog.ItemID) {
		return &c.sel.ParkingID, c.sel.ProjectID
	})
}

// ChooseCommercial sets or clears the commercial-unit selection.
func (c *Cascade) ChooseCommercial(id catalog.ItemID) error {
	return c.chooseLeaf("commercial", id, func() (*catalog.ItemID, catalog.ItemID) {
		return &c.sel.CommercialID, c.sel.ProjectID
	})
}

// chooseLeaf sets a leaf field after checking its parent is selected.
func (c *Cascade) chooseLeaf(level string, id catalog.ItemID, fields func() (field *catalog.ItemID, parent catalog.ItemID)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	field, parent := fields()
	if id != "" && parent == "" {
		err := dErrors.Newf(dErrors.CodeValidation, "choose a parent selection before a %s", level)
		c.metrics.ObserveCascadeTransition(level, err)
		return err
	}
	*field = id
	c.metrics.ObserveCascadeTransition(level, nil)
	return nil
}

// begin stamps a new generation and applies the synchronous part of a
// transition (selection clearing) under the lock.
func (c *Cascade) begin(mutate func()) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	mutate()
	return c.generation
}

// apply installs a fetch result only if its generation is still current.
func (c *Cascade) apply(gen uint64, install func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.metrics.IncStaleDrop()
		c.logger.Debug("dropping stale cascade completion", "generation", gen, "current", c.generation)
		return ErrSuperseded
	}
	install()
	return nil
}

// Snapshot captures the cascade state for external session storage.
type Snapshot struct {
	Selection  Selection  `json:"selection"`
	Options    OptionSets `json:"options"`
	Generation uint64     `json:"generation"`
}

// Snapshot returns a copy of the full cascade state.
func (c *Cascade) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Selection: c.sel, Options: c.opts, Generation: c.generation}
}

// Restore replaces the cascade state from a snapshot. In-flight transitions
// from before the restore are superseded.
func (c *Cascade) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel = snap.Selection
	c.opts = snap.Options
	if snap.Generation > c.generation {
		c.generation = snap.Generation
	}
	c.generation++
}
