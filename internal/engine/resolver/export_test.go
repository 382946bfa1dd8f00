package resolver

// Exported for white-box tests.
var (
	FeatureLayer      = featureLayer
	MetadataFromLayer = metadataFromLayer
)
