package dimension

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
)

var (
	// ErrUnknownDimension is returned when a point names a dimension that is not configured.
	ErrUnknownDimension = apperrors.New(apperrors.CodeDimensionUnknown, "unknown dimension")
	// ErrUnknownDimensionValue is returned when a coordinate is not a configured value.
	ErrUnknownDimensionValue = apperrors.New(apperrors.CodeDimensionValueUnknown, "unknown dimension value")
	// ErrIncompletePoint is returned when a point omits a configured dimension.
	ErrIncompletePoint = apperrors.New(apperrors.CodeDimensionPointIncomplete, "dimension space point is incomplete")
	// ErrInvalidConfig is returned when the dimension configuration is malformed.
	ErrInvalidConfig = apperrors.New(apperrors.CodeDimensionConfigInvalid, "invalid dimension configuration")
	// ErrAmbiguousCoverage is returned when a point resolves to more than one controlling origin.
	ErrAmbiguousCoverage = apperrors.New(apperrors.CodeDimensionAmbiguousCoverage, "ambiguous coverage")
	// ErrPointNotCovered is returned when no origin controls a point.
	ErrPointNotCovered = apperrors.New(apperrors.CodeDimensionPointNotCovered, "point is not covered")
)

func unknownDimension(name string) error {
	return apperrors.WithMetadata(apperrors.CodeDimensionUnknown,
		fmt.Sprintf("unknown dimension %q", name),
		map[string]string{"dimension": name})
}

func unknownValue(name, value string) error {
	return apperrors.WithMetadata(apperrors.CodeDimensionValueUnknown,
		fmt.Sprintf("unknown value %q for dimension %q", value, name),
		map[string]string{"dimension": name, "value": value})
}

func incompletePoint(name string) error {
	return apperrors.WithMetadata(apperrors.CodeDimensionPointIncomplete,
		fmt.Sprintf("dimension space point has no value for %q", name),
		map[string]string{"dimension": name})
}

func invalidConfig(format string, args ...any) error {
	return apperrors.New(apperrors.CodeDimensionConfigInvalid, "invalid dimension configuration: "+fmt.Sprintf(format, args...))
}

func ambiguousCoverage(point Point, candidates []Origin) error {
	return apperrors.WithMetadata(apperrors.CodeDimensionAmbiguousCoverage,
		fmt.Sprintf("point %s is controlled by %d incomparable origins", point, len(candidates)),
		map[string]string{"point": point.Hash()})
}

func pointNotCovered(point Point) error {
	return apperrors.WithMetadata(apperrors.CodeDimensionPointNotCovered,
		fmt.Sprintf("point %s is not covered", point),
		map[string]string{"point": point.Hash()})
}

func isAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguousCoverage)
}
