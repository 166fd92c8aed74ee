package embeddings

// Quality names the embedding model presets the host exposes. Each
// preset pins one CLIP checkpoint; vectors from different checkpoints
// live in different index spaces and are never compared.
type Quality string

const (
	QualityVeryFast Quality = "very_fast_low_quality"
	QualityBalanced Quality = "balanced"
	QualityHigh     Quality = "high_quality_slow"
)

// Model identifies one embedding checkpoint and its vector width.
type Model struct {
	ID         string
	Dimensions int
}

var qualityModels = map[Quality]Model{
	QualityVeryFast: {ID: "openai/clip-vit-base-patch32", Dimensions: 512},
	QualityBalanced: {ID: "openai/clip-vit-base-patch16", Dimensions: 512},
	QualityHigh:     {ID: "openai/clip-vit-large-patch14", Dimensions: 768},
}

// ModelForQuality resolves a preset name; unknown names fall back to the
// balanced preset.
func ModelForQuality(quality Quality) Model {
	if m, ok := qualityModels[quality]; ok {
		return m
	}
	return qualityModels[QualityBalanced]
}
