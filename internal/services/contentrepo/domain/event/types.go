package event

const (
	// Node aggregate events, appended to content streams.
	TypeNodeAggregateWithNodeWasCreated     Type = "NodeAggregateWithNodeWasCreated"
	TypeNodeGeneralizationVariantWasCreated Type = "NodeGeneralizationVariantWasCreated"
	TypeNodeSpecializationVariantWasCreated Type = "NodeSpecializationVariantWasCreated"
	TypeNodePeerVariantWasCreated           Type = "NodePeerVariantWasCreated"
	TypeNodePropertiesWereSet               Type = "NodePropertiesWereSet"
	TypeNodeAggregateWasRemoved             Type = "NodeAggregateWasRemoved"

	// Content stream lifecycle events.
	TypeContentStreamWasCreated Type = "ContentStreamWasCreated"
	TypeContentStreamWasForked  Type = "ContentStreamWasForked"
	TypeContentStreamWasRemoved Type = "ContentStreamWasRemoved"

	// Workspace lifecycle events.
	TypeRootWorkspaceWasCreated        Type = "RootWorkspaceWasCreated"
	TypeWorkspaceWasCreated            Type = "WorkspaceWasCreated"
	TypeWorkspaceWasRebased            Type = "WorkspaceWasRebased"
	TypeWorkspaceWasPublished          Type = "WorkspaceWasPublished"
	TypeWorkspaceWasPartiallyPublished Type = "WorkspaceWasPartiallyPublished"
	TypeWorkspaceWasDiscarded          Type = "WorkspaceWasDiscarded"
	TypeWorkspaceWasPartiallyDiscarded Type = "WorkspaceWasPartiallyDiscarded"
)

// Owner groups event types by the stream family they are appended to.
type Owner string

const (
	OwnerNode          Owner = "node"
	OwnerContentStream Owner = "content_stream"
	OwnerWorkspace     Owner = "workspace"
)
