package nodeaggregate

import (
	"fmt"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
)

var (
	// ErrNodeAggregateIDRequired is returned when an event names no aggregate.
	ErrNodeAggregateIDRequired = apperrors.New(apperrors.CodeNodeAggregateIDEmpty, "node aggregate id is required")
	// ErrNodeAggregateAlreadyExists is returned when creating an aggregate that exists.
	ErrNodeAggregateAlreadyExists = apperrors.New(apperrors.CodeNodeAggregateExists, "node aggregate already exists")
	// ErrNodeAggregateNotFound is returned when an event targets a missing aggregate.
	ErrNodeAggregateNotFound = apperrors.New(apperrors.CodeNodeAggregateNotFound, "node aggregate not found")
	// ErrSourceOriginNotFound is returned when a variant's source origin is not occupied.
	ErrSourceOriginNotFound = apperrors.New(apperrors.CodeNodeSourceOriginNotFound, "source origin is not occupied")
	// ErrTargetOriginAlreadyOccupied is returned when a variant's target origin is occupied.
	ErrTargetOriginAlreadyOccupied = apperrors.New(apperrors.CodeNodeTargetOriginOccupied, "target origin is already occupied")
	// ErrInvalidVariation is returned when source and target do not have the
	// relation the variant kind requires.
	ErrInvalidVariation = apperrors.New(apperrors.CodeNodeInvalidVariation, "invalid variation")
	// ErrOriginNotFound is returned when an event targets an origin the aggregate does not occupy.
	ErrOriginNotFound = apperrors.New(apperrors.CodeNodeOriginNotFound, "origin is not occupied")
	// ErrParentNotCovering is returned when a child would be visible at a point
	// its parent does not cover.
	ErrParentNotCovering = apperrors.New(apperrors.CodeNodeParentNotCovering, "parent does not cover point")
)

func aggregateMetadata(id string, origin dimension.Origin) map[string]string {
	return map[string]string{"node_aggregate_id": id, "origin": origin.Hash()}
}

func alreadyExists(id string) error {
	return apperrors.WithMetadata(apperrors.CodeNodeAggregateExists,
		fmt.Sprintf("node aggregate %q already exists", id),
		map[string]string{"node_aggregate_id": id})
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeNodeAggregateNotFound,
		fmt.Sprintf("node aggregate %q not found", id),
		map[string]string{"node_aggregate_id": id})
}

func sourceNotFound(id string, origin dimension.Origin) error {
	return apperrors.WithMetadata(apperrors.CodeNodeSourceOriginNotFound,
		fmt.Sprintf("node aggregate %q does not occupy source %s", id, origin),
		aggregateMetadata(id, origin))
}

func targetOccupied(id string, origin dimension.Origin) error {
	return apperrors.WithMetadata(apperrors.CodeNodeTargetOriginOccupied,
		fmt.Sprintf("node aggregate %q already occupies %s", id, origin),
		aggregateMetadata(id, origin))
}

func invalidVariation(id string, want, got dimension.Relation) error {
	return apperrors.WithMetadata(apperrors.CodeNodeInvalidVariation,
		fmt.Sprintf("node aggregate %q: target must be a %s of the source, got %s", id, want, got),
		map[string]string{"node_aggregate_id": id, "relation": got.String()})
}

func originNotFound(id string, origin dimension.Origin) error {
	return apperrors.WithMetadata(apperrors.CodeNodeOriginNotFound,
		fmt.Sprintf("node aggregate %q does not occupy %s", id, origin),
		aggregateMetadata(id, origin))
}

func parentNotCovering(id, parentID string, point dimension.Point) error {
	return apperrors.WithMetadata(apperrors.CodeNodeParentNotCovering,
		fmt.Sprintf("node aggregate %q: parent %q does not cover %s", id, parentID, point),
		map[string]string{"node_aggregate_id": id, "parent_node_aggregate_id": parentID, "point": point.Hash()})
}
