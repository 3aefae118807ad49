package catalog

// Schema names the boards and columns the intake flow touches. Board and
// column identifiers are assigned by the remote service and configured
// out-of-band; the zero-value schema is unusable.
type Schema struct {
	Boards  Boards
	Columns Columns
}

// Boards are the four boards of the intake flow.
type Boards struct {
	Projects       BoardID
	Units          BoardID
	Communications BoardID
	Buyers         BoardID
}

// Columns are the relation and attribute columns keyed per board.
type Columns struct {
	// Projects board relations to its unit groups.
	ProjectBuildings  ColumnID
	ProjectStorage    ColumnID
	ProjectParking    ColumnID
	ProjectCommercial ColumnID

	// Units board.
	BuildingApartments  ColumnID
	ApartmentNumberText ColumnID

	// Communications board targets. TargetBuilding receives the selected
	// apartment id; the column is named for buildings on the remote board
	// and downstream consumers depend on that mapping.
	TargetProject    ColumnID
	TargetBuilding   ColumnID
	TargetStorage    ColumnID
	TargetParking    ColumnID
	TargetCommercial ColumnID
	TargetBuyers     ColumnID
	TargetAttachment ColumnID

	// Buyers board attributes. BuyerIDNumber is the natural key.
	BuyerIDNumber ColumnID
	BuyerPhone    ColumnID
	BuyerEmail    ColumnID
}

// ProjectRelations lists the four relation columns fetched when a project
// is chosen, in a fixed order: buildings, storage, parking, commercial.
func (s Schema) ProjectRelations() []ColumnID {
	return []ColumnID{
		s.Columns.ProjectBuildings,
		s.Columns.ProjectStorage,
		s.Columns.ProjectParking,
		s.Columns.ProjectCommercial,
	}
}
