package assetusage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// Extractor finds the asset ids a property value references.
type Extractor interface {
	Extract(value event.PropertyValue) ([]string, error)
}

var assetURI = regexp.MustCompile(`(?i)asset://([\w-]*)`)

// DefaultResourceTypes are the property types stored as an object carrying
// the asset id under "__identifier".
var DefaultResourceTypes = []string{"Asset", "Image", "ImageVariant", "Document", "Audio", "Video"}

// PropertyExtractor reads asset ids from serialized property values:
//   - string values are scanned for asset://<id> links;
//   - resource values carry their id under "__identifier";
//   - collections (array<T> or T[]) of either are scanned element by element.
type PropertyExtractor struct {
	// ResourceTypes overrides DefaultResourceTypes when set.
	ResourceTypes []string
}

// Extract implements Extractor.
func (x PropertyExtractor) Extract(value event.PropertyValue) ([]string, error) {
	return x.extract(value.Type, value.Value)
}

func (x PropertyExtractor) extract(typ string, value any) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	switch {
	case typ == "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("property of type string holds %T", value)
		}
		var ids []string
		for _, match := range assetURI.FindAllStringSubmatch(s, -1) {
			if match[1] != "" {
				ids = append(ids, match[1])
			}
		}
		return ids, nil
	case x.isResource(typ):
		object, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("property of type %s holds %T", typ, value)
		}
		if id, ok := object["__identifier"].(string); ok && id != "" {
			return []string{id}, nil
		}
		return nil, nil
	}

	elem, ok := elementType(typ)
	if !ok || (elem != "string" && !x.isResource(elem)) {
		return nil, nil
	}
	elements, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("property of type %s holds %T", typ, value)
	}
	var ids []string
	for i, element := range elements {
		found, err := x.extract(elem, element)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		ids = append(ids, found...)
	}
	return ids, nil
}

func (x PropertyExtractor) isResource(typ string) bool {
	types := x.ResourceTypes
	if types == nil {
		types = DefaultResourceTypes
	}
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

// elementType parses array<T> and T[].
func elementType(typ string) (string, bool) {
	if inner, ok := strings.CutPrefix(typ, "array<"); ok {
		if elem, ok := strings.CutSuffix(inner, ">"); ok && elem != "" {
			return elem, true
		}
	}
	if elem, ok := strings.CutSuffix(typ, "[]"); ok && elem != "" {
		return elem, true
	}
	return "", false
}
