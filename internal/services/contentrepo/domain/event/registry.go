package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
)

var (
	// ErrUnknownType is returned when an event type has no registered definition.
	ErrUnknownType = apperrors.New(apperrors.CodeEventTypeUnknown, "unknown event type")
	// ErrPayloadInvalid is returned when a payload does not decode or validate.
	ErrPayloadInvalid = apperrors.New(apperrors.CodeEventPayloadInvalid, "invalid event payload")
)

// Definition describes a registered event type.
type Definition struct {
	Type  Type
	Owner Owner

	decode func(data []byte) (Payload, error)
}

// Registry knows every event type the repository writes and how to decode it.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry returns a registry with every built-in event type.
func NewRegistry() *Registry {
	r := &Registry{definitions: make(map[Type]Definition)}

	register[NodeAggregateWithNodeWasCreated](r, OwnerNode)
	register[NodeGeneralizationVariantWasCreated](r, OwnerNode)
	register[NodeSpecializationVariantWasCreated](r, OwnerNode)
	register[NodePeerVariantWasCreated](r, OwnerNode)
	register[NodePropertiesWereSet](r, OwnerNode)
	register[NodeAggregateWasRemoved](r, OwnerNode)

	register[ContentStreamWasCreated](r, OwnerContentStream)
	register[ContentStreamWasForked](r, OwnerContentStream)
	register[ContentStreamWasRemoved](r, OwnerContentStream)

	register[RootWorkspaceWasCreated](r, OwnerWorkspace)
	register[WorkspaceWasCreated](r, OwnerWorkspace)
	register[WorkspaceWasRebased](r, OwnerWorkspace)
	register[WorkspaceWasPublished](r, OwnerWorkspace)
	register[WorkspaceWasPartiallyPublished](r, OwnerWorkspace)
	register[WorkspaceWasDiscarded](r, OwnerWorkspace)
	register[WorkspaceWasPartiallyDiscarded](r, OwnerWorkspace)

	return r
}

func register[P Payload](r *Registry, owner Owner) {
	var zero P
	r.definitions[zero.EventType()] = Definition{
		Type:  zero.EventType(),
		Owner: owner,
		decode: func(data []byte) (Payload, error) {
			var payload P
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// Definition returns the definition registered for a type.
func (r *Registry) Definition(eventType Type) (Definition, bool) {
	def, ok := r.definitions[eventType]
	return def, ok
}

// Types returns the registered types in lexical order.
func (r *Registry) Types() []Type {
	types := make([]Type, 0, len(r.definitions))
	for eventType := range r.definitions {
		types = append(types, eventType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Decode parses an event's payload into its typed form.
func (r *Registry) Decode(evt Event) (Payload, error) {
	def, ok := r.definitions[evt.Type]
	if !ok {
		return nil, unknownType(evt.Type)
	}
	payload, err := def.decode(evt.PayloadJSON)
	if err != nil {
		return nil, invalidPayload(evt.Type, err)
	}
	return payload, nil
}

// ValidateForAppend checks an event before it is written. The returned event
// carries the canonical payload encoding.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	if strings.TrimSpace(evt.StreamID) == "" {
		return Event{}, fmt.Errorf("%w: stream id is required", ErrPayloadInvalid)
	}
	def, ok := r.definitions[evt.Type]
	if !ok {
		return Event{}, unknownType(evt.Type)
	}
	if owner := OwnerOf(evt.StreamID); owner != def.Owner {
		return Event{}, apperrors.WithMetadata(apperrors.CodeEventPayloadInvalid,
			fmt.Sprintf("%s events cannot be appended to %s streams", def.Owner, owner),
			map[string]string{"event_type": string(evt.Type), "stream_id": evt.StreamID})
	}
	payload, err := def.decode(evt.PayloadJSON)
	if err != nil {
		return Event{}, invalidPayload(evt.Type, err)
	}
	if err := payload.validate(); err != nil {
		return Event{}, invalidPayload(evt.Type, err)
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return Event{}, invalidPayload(evt.Type, err)
	}
	evt.PayloadJSON = canonical
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return evt, nil
}

// New builds an unsequenced event for a stream.
func New(streamID string, payload Payload, now time.Time) (Event, error) {
	if payload == nil {
		return Event{}, fmt.Errorf("%w: payload is required", ErrPayloadInvalid)
	}
	if err := payload.validate(); err != nil {
		return Event{}, invalidPayload(payload.EventType(), err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, invalidPayload(payload.EventType(), err)
	}
	return Event{
		StreamID:    streamID,
		Type:        payload.EventType(),
		Timestamp:   now.UTC(),
		PayloadJSON: data,
	}, nil
}

// OwnerOf returns the family of events a stream accepts.
func OwnerOf(streamID string) Owner {
	switch {
	case strings.HasPrefix(streamID, workspaceStreamPrefix):
		return OwnerWorkspace
	case strings.HasPrefix(streamID, contentStreamMetaPrefix):
		return OwnerContentStream
	default:
		return OwnerNode
	}
}

func unknownType(eventType Type) error {
	return apperrors.WithMetadata(apperrors.CodeEventTypeUnknown,
		fmt.Sprintf("unknown event type %q", eventType),
		map[string]string{"event_type": string(eventType)})
}

func invalidPayload(eventType Type, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeEventPayloadInvalid,
		fmt.Sprintf("invalid %s payload", eventType),
		map[string]string{"event_type": string(eventType)}, cause)
}
