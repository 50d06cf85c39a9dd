// Package errors provides structured error handling with gRPC status mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Dimension errors
	CodeDimensionUnknown           Code = "DIMENSION_UNKNOWN"
	CodeDimensionValueUnknown      Code = "DIMENSION_VALUE_UNKNOWN"
	CodeDimensionPointIncomplete   Code = "DIMENSION_POINT_INCOMPLETE"
	CodeDimensionConfigInvalid     Code = "DIMENSION_CONFIG_INVALID"
	CodeDimensionAmbiguousCoverage Code = "DIMENSION_AMBIGUOUS_COVERAGE"
	CodeDimensionPointNotCovered   Code = "DIMENSION_POINT_NOT_COVERED"

	// Node aggregate errors
	CodeNodeAggregateIDEmpty     Code = "NODE_AGGREGATE_ID_EMPTY"
	CodeNodeAggregateExists      Code = "NODE_AGGREGATE_EXISTS"
	CodeNodeAggregateNotFound    Code = "NODE_AGGREGATE_NOT_FOUND"
	CodeNodeSourceOriginNotFound Code = "NODE_SOURCE_ORIGIN_NOT_FOUND"
	CodeNodeTargetOriginOccupied Code = "NODE_TARGET_ORIGIN_OCCUPIED"
	CodeNodeInvalidVariation     Code = "NODE_INVALID_VARIATION"
	CodeNodeOriginNotFound       Code = "NODE_ORIGIN_NOT_FOUND"
	CodeNodeParentNotCovering    Code = "NODE_PARENT_NOT_COVERING"

	// Content stream and workspace errors
	CodeContentStreamIDEmpty  Code = "CONTENT_STREAM_ID_EMPTY"
	CodeContentStreamNotFound Code = "CONTENT_STREAM_NOT_FOUND"
	CodeContentStreamExists   Code = "CONTENT_STREAM_EXISTS"
	CodeContentStreamClosed   Code = "CONTENT_STREAM_CLOSED"
	CodeContentStreamInUse    Code = "CONTENT_STREAM_IN_USE"
	CodeConcurrentAppend      Code = "CONCURRENT_APPEND"
	CodeWorkspaceNameEmpty    Code = "WORKSPACE_NAME_EMPTY"
	CodeWorkspaceNotFound     Code = "WORKSPACE_NOT_FOUND"
	CodeWorkspaceExists       Code = "WORKSPACE_EXISTS"
	CodeWorkspaceBusy         Code = "WORKSPACE_BUSY"
	CodeWorkspaceHasNoBase    Code = "WORKSPACE_HAS_NO_BASE"
	CodeBranchConflict        Code = "BRANCH_CONFLICT"
	CodePublishConflict       Code = "PUBLISH_CONFLICT"

	// Event errors
	CodeEventTypeUnknown    Code = "EVENT_TYPE_UNKNOWN"
	CodeEventPayloadInvalid Code = "EVENT_PAYLOAD_INVALID"

	// Projection errors
	CodeProjectionApplyFailed Code = "PROJECTION_APPLY_FAILED"
	CodeCheckpointLocked      Code = "CHECKPOINT_LOCKED"
	CodeCheckpointLeaseLost   Code = "CHECKPOINT_LEASE_LOST"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeDimensionUnknown,
		CodeDimensionValueUnknown,
		CodeDimensionPointIncomplete,
		CodeDimensionConfigInvalid,
		CodeDimensionAmbiguousCoverage,
		CodeNodeAggregateIDEmpty,
		CodeNodeInvalidVariation,
		CodeContentStreamIDEmpty,
		CodeWorkspaceNameEmpty,
		CodeEventTypeUnknown,
		CodeEventPayloadInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeNodeSourceOriginNotFound,
		CodeNodeTargetOriginOccupied,
		CodeNodeParentNotCovering,
		CodeDimensionPointNotCovered,
		CodeContentStreamClosed,
		CodeContentStreamInUse,
		CodeWorkspaceHasNoBase,
		CodePublishConflict,
		CodeBranchConflict:
		return codes.FailedPrecondition

	// Aborted - concurrency conflicts the caller may retry
	case CodeConcurrentAppend,
		CodeWorkspaceBusy,
		CodeCheckpointLocked,
		CodeCheckpointLeaseLost:
		return codes.Aborted

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeNodeAggregateNotFound,
		CodeNodeOriginNotFound,
		CodeContentStreamNotFound,
		CodeWorkspaceNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeNodeAggregateExists,
		CodeContentStreamExists,
		CodeWorkspaceExists:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
