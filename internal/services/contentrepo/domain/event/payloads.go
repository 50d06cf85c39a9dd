package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/sibling"
)

// Payload is the decoded body of an event. The set of payload types is closed.
type Payload interface {
	EventType() Type
	validate() error
	dispatch(ctx context.Context, h Handler, evt Event) error
}

// NodePayload is implemented by payloads that change one node aggregate.
// These are the events publish, discard and rebase relocate between streams.
type NodePayload interface {
	Payload
	AggregateID() string
	dispatchNode(ctx context.Context, h NodeHandler, evt Event) error
}

// PropertyValue is a serialized property with its declared type.
type PropertyValue struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// PropertyValues maps property names to values.
type PropertyValues map[string]PropertyValue

// Merge returns a copy of p with values set and names in unset removed.
func (p PropertyValues) Merge(values PropertyValues, unset []string) PropertyValues {
	merged := make(PropertyValues, len(p)+len(values))
	for name, value := range p {
		merged[name] = value
	}
	for name, value := range values {
		merged[name] = value
	}
	for _, name := range unset {
		delete(merged, name)
	}
	return merged
}

// NodeAggregateWithNodeWasCreated creates a node aggregate with its first
// occurrence.
type NodeAggregateWithNodeWasCreated struct {
	NodeAggregateID           string           `json:"nodeAggregateId"`
	NodeTypeName              string           `json:"nodeTypeName"`
	OriginDimensionSpacePoint dimension.Origin `json:"originDimensionSpacePoint"`
	SucceedingSiblings        sibling.Siblings `json:"succeedingSiblingsForCoverage"`
	ParentNodeAggregateID     string           `json:"parentNodeAggregateId,omitempty"`
	NodeName                  string           `json:"nodeName,omitempty"`
	InitialPropertyValues     PropertyValues   `json:"initialPropertyValues"`
}

// NodeGeneralizationVariantWasCreated adds an occurrence at a more general point.
type NodeGeneralizationVariantWasCreated struct {
	NodeAggregateID           string           `json:"nodeAggregateId"`
	SourceOrigin              dimension.Origin `json:"sourceOrigin"`
	GeneralizationOrigin      dimension.Origin `json:"generalizationOrigin"`
	VariantSucceedingSiblings sibling.Siblings `json:"variantSucceedingSiblings"`
}

// UnmarshalJSON accepts the older encoding that recorded only the covered
// points as generalizationCoverage. Those points append at the end.
func (p *NodeGeneralizationVariantWasCreated) UnmarshalJSON(data []byte) error {
	var wire struct {
		NodeAggregateID           string              `json:"nodeAggregateId"`
		SourceOrigin              dimension.Origin    `json:"sourceOrigin"`
		GeneralizationOrigin      dimension.Origin    `json:"generalizationOrigin"`
		VariantSucceedingSiblings *sibling.Siblings   `json:"variantSucceedingSiblings"`
		GeneralizationCoverage    *dimension.PointSet `json:"generalizationCoverage"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.NodeAggregateID = wire.NodeAggregateID
	p.SourceOrigin = wire.SourceOrigin
	p.GeneralizationOrigin = wire.GeneralizationOrigin
	switch {
	case wire.VariantSucceedingSiblings != nil:
		p.VariantSucceedingSiblings = *wire.VariantSucceedingSiblings
	case wire.GeneralizationCoverage != nil:
		p.VariantSucceedingSiblings = sibling.FromPointSet(*wire.GeneralizationCoverage)
	default:
		p.VariantSucceedingSiblings = sibling.New()
	}
	return nil
}

// NodeSpecializationVariantWasCreated adds an occurrence at a more specific point.
type NodeSpecializationVariantWasCreated struct {
	NodeAggregateID        string           `json:"nodeAggregateId"`
	SourceOrigin           dimension.Origin `json:"sourceOrigin"`
	SpecializationOrigin   dimension.Origin `json:"specializationOrigin"`
	SpecializationSiblings sibling.Siblings `json:"specializationSiblings"`
}

// NodePeerVariantWasCreated adds an occurrence at an unrelated point.
type NodePeerVariantWasCreated struct {
	NodeAggregateID        string           `json:"nodeAggregateId"`
	SourceOrigin           dimension.Origin `json:"sourceOrigin"`
	PeerOrigin             dimension.Origin `json:"peerOrigin"`
	PeerSucceedingSiblings sibling.Siblings `json:"peerSucceedingSiblings"`
}

// NodePropertiesWereSet merges properties into one occurrence.
type NodePropertiesWereSet struct {
	NodeAggregateID           string           `json:"nodeAggregateId"`
	OriginDimensionSpacePoint dimension.Origin `json:"originDimensionSpacePoint"`
	PropertyValues            PropertyValues   `json:"propertyValues"`
	PropertiesToUnset         []string         `json:"propertiesToUnset,omitempty"`
}

// NodeAggregateWasRemoved removes occurrences. An empty origin set removes the
// whole aggregate.
type NodeAggregateWasRemoved struct {
	NodeAggregateID                      string              `json:"nodeAggregateId"`
	AffectedOccupiedDimensionSpacePoints dimension.OriginSet `json:"affectedOccupiedDimensionSpacePoints"`
}

// ContentStreamWasCreated marks the creation of a stream without a parent.
type ContentStreamWasCreated struct {
	ContentStreamID string `json:"contentStreamId"`
}

// ContentStreamWasForked marks the creation of a stream inheriting the first
// VersionOfSourceContentStream events of its source.
type ContentStreamWasForked struct {
	NewContentStreamID           string `json:"newContentStreamId"`
	SourceContentStreamID        string `json:"sourceContentStreamId"`
	VersionOfSourceContentStream uint64 `json:"versionOfSourceContentStream"`
}

// ContentStreamWasRemoved terminates a stream no workspace points at.
type ContentStreamWasRemoved struct {
	ContentStreamID string `json:"contentStreamId"`
}

// RootWorkspaceWasCreated creates a workspace without a base.
type RootWorkspaceWasCreated struct {
	WorkspaceName      string `json:"workspaceName"`
	NewContentStreamID string `json:"newContentStreamId"`
}

// WorkspaceWasCreated creates a workspace on top of a base workspace.
type WorkspaceWasCreated struct {
	WorkspaceName      string `json:"workspaceName"`
	BaseWorkspaceName  string `json:"baseWorkspaceName"`
	NewContentStreamID string `json:"newContentStreamId"`
}

// WorkspaceWasRebased repoints a workspace at a stream replayed onto its base.
// SkippedEvents lists the versions of events dropped by a forced rebase.
type WorkspaceWasRebased struct {
	WorkspaceName           string   `json:"workspaceName"`
	BaseWorkspaceName       string   `json:"baseWorkspaceName"`
	NewContentStreamID      string   `json:"newContentStreamId"`
	PreviousContentStreamID string   `json:"previousContentStreamId"`
	SkippedEvents           []uint64 `json:"skippedEvents,omitempty"`
}

// WorkspaceWasPublished records that all changes moved to the target.
type WorkspaceWasPublished struct {
	SourceWorkspaceName           string `json:"sourceWorkspaceName"`
	TargetWorkspaceName           string `json:"targetWorkspaceName"`
	NewSourceContentStreamID      string `json:"newSourceContentStreamId"`
	PreviousSourceContentStreamID string `json:"previousSourceContentStreamId"`
}

// WorkspaceWasPartiallyPublished records that selected aggregates moved to the
// target while the rest stayed on a fresh stream.
type WorkspaceWasPartiallyPublished struct {
	SourceWorkspaceName           string   `json:"sourceWorkspaceName"`
	TargetWorkspaceName           string   `json:"targetWorkspaceName"`
	NewSourceContentStreamID      string   `json:"newSourceContentStreamId"`
	PreviousSourceContentStreamID string   `json:"previousSourceContentStreamId"`
	PublishedNodeAggregateIDs     []string `json:"publishedNodeAggregateIds"`
}

// WorkspaceWasDiscarded records that all changes were abandoned.
type WorkspaceWasDiscarded struct {
	WorkspaceName           string `json:"workspaceName"`
	NewContentStreamID      string `json:"newContentStreamId"`
	PreviousContentStreamID string `json:"previousContentStreamId"`
}

// WorkspaceWasPartiallyDiscarded records that selected aggregates' changes
// were abandoned.
type WorkspaceWasPartiallyDiscarded struct {
	WorkspaceName             string   `json:"workspaceName"`
	NewContentStreamID        string   `json:"newContentStreamId"`
	PreviousContentStreamID   string   `json:"previousContentStreamId"`
	DiscardedNodeAggregateIDs []string `json:"discardedNodeAggregateIds"`
}

func (NodeAggregateWithNodeWasCreated) EventType() Type     { return TypeNodeAggregateWithNodeWasCreated }
func (NodeGeneralizationVariantWasCreated) EventType() Type { return TypeNodeGeneralizationVariantWasCreated }
func (NodeSpecializationVariantWasCreated) EventType() Type { return TypeNodeSpecializationVariantWasCreated }
func (NodePeerVariantWasCreated) EventType() Type           { return TypeNodePeerVariantWasCreated }
func (NodePropertiesWereSet) EventType() Type               { return TypeNodePropertiesWereSet }
func (NodeAggregateWasRemoved) EventType() Type             { return TypeNodeAggregateWasRemoved }
func (ContentStreamWasCreated) EventType() Type             { return TypeContentStreamWasCreated }
func (ContentStreamWasForked) EventType() Type              { return TypeContentStreamWasForked }
func (ContentStreamWasRemoved) EventType() Type             { return TypeContentStreamWasRemoved }
func (RootWorkspaceWasCreated) EventType() Type             { return TypeRootWorkspaceWasCreated }
func (WorkspaceWasCreated) EventType() Type                 { return TypeWorkspaceWasCreated }
func (WorkspaceWasRebased) EventType() Type                 { return TypeWorkspaceWasRebased }
func (WorkspaceWasPublished) EventType() Type               { return TypeWorkspaceWasPublished }
func (WorkspaceWasPartiallyPublished) EventType() Type      { return TypeWorkspaceWasPartiallyPublished }
func (WorkspaceWasDiscarded) EventType() Type               { return TypeWorkspaceWasDiscarded }
func (WorkspaceWasPartiallyDiscarded) EventType() Type      { return TypeWorkspaceWasPartiallyDiscarded }

func (p NodeAggregateWithNodeWasCreated) AggregateID() string     { return p.NodeAggregateID }
func (p NodeGeneralizationVariantWasCreated) AggregateID() string { return p.NodeAggregateID }
func (p NodeSpecializationVariantWasCreated) AggregateID() string { return p.NodeAggregateID }
func (p NodePeerVariantWasCreated) AggregateID() string           { return p.NodeAggregateID }
func (p NodePropertiesWereSet) AggregateID() string               { return p.NodeAggregateID }
func (p NodeAggregateWasRemoved) AggregateID() string             { return p.NodeAggregateID }

func (p RootWorkspaceWasCreated) Workspace() string        { return p.WorkspaceName }
func (p WorkspaceWasCreated) Workspace() string            { return p.WorkspaceName }
func (p WorkspaceWasRebased) Workspace() string            { return p.WorkspaceName }
func (p WorkspaceWasPublished) Workspace() string          { return p.SourceWorkspaceName }
func (p WorkspaceWasPartiallyPublished) Workspace() string { return p.SourceWorkspaceName }
func (p WorkspaceWasDiscarded) Workspace() string          { return p.WorkspaceName }
func (p WorkspaceWasPartiallyDiscarded) Workspace() string { return p.WorkspaceName }

func (p NodeAggregateWithNodeWasCreated) validate() error {
	if err := require("nodeAggregateId", p.NodeAggregateID); err != nil {
		return err
	}
	return require("nodeTypeName", p.NodeTypeName)
}

func (p NodeGeneralizationVariantWasCreated) validate() error {
	return require("nodeAggregateId", p.NodeAggregateID)
}

func (p NodeSpecializationVariantWasCreated) validate() error {
	return require("nodeAggregateId", p.NodeAggregateID)
}

func (p NodePeerVariantWasCreated) validate() error {
	return require("nodeAggregateId", p.NodeAggregateID)
}

func (p NodePropertiesWereSet) validate() error {
	return require("nodeAggregateId", p.NodeAggregateID)
}

func (p NodeAggregateWasRemoved) validate() error {
	return require("nodeAggregateId", p.NodeAggregateID)
}

func (p ContentStreamWasCreated) validate() error {
	return require("contentStreamId", p.ContentStreamID)
}

func (p ContentStreamWasForked) validate() error {
	if err := require("newContentStreamId", p.NewContentStreamID); err != nil {
		return err
	}
	return require("sourceContentStreamId", p.SourceContentStreamID)
}

func (p ContentStreamWasRemoved) validate() error {
	return require("contentStreamId", p.ContentStreamID)
}

func (p RootWorkspaceWasCreated) validate() error {
	if err := require("workspaceName", p.WorkspaceName); err != nil {
		return err
	}
	return require("newContentStreamId", p.NewContentStreamID)
}

func (p WorkspaceWasCreated) validate() error {
	if err := require("workspaceName", p.WorkspaceName); err != nil {
		return err
	}
	if err := require("baseWorkspaceName", p.BaseWorkspaceName); err != nil {
		return err
	}
	return require("newContentStreamId", p.NewContentStreamID)
}

func (p WorkspaceWasRebased) validate() error {
	return requireReplacement(p.WorkspaceName, p.NewContentStreamID, p.PreviousContentStreamID)
}

func (p WorkspaceWasPublished) validate() error {
	if err := require("targetWorkspaceName", p.TargetWorkspaceName); err != nil {
		return err
	}
	return requireReplacement(p.SourceWorkspaceName, p.NewSourceContentStreamID, p.PreviousSourceContentStreamID)
}

func (p WorkspaceWasPartiallyPublished) validate() error {
	if err := require("targetWorkspaceName", p.TargetWorkspaceName); err != nil {
		return err
	}
	return requireReplacement(p.SourceWorkspaceName, p.NewSourceContentStreamID, p.PreviousSourceContentStreamID)
}

func (p WorkspaceWasDiscarded) validate() error {
	return requireReplacement(p.WorkspaceName, p.NewContentStreamID, p.PreviousContentStreamID)
}

func (p WorkspaceWasPartiallyDiscarded) validate() error {
	return requireReplacement(p.WorkspaceName, p.NewContentStreamID, p.PreviousContentStreamID)
}

func require(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func requireReplacement(workspace, newStream, previousStream string) error {
	if err := require("workspaceName", workspace); err != nil {
		return err
	}
	if err := require("newContentStreamId", newStream); err != nil {
		return err
	}
	return require("previousContentStreamId", previousStream)
}
