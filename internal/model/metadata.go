package model

// Metadata describes a raw payload handed to the pipeline entrypoint.
type Metadata struct {
	Source              string `json:"source" mapstructure:"source"`
	UserID              string `json:"user_id,omitempty" mapstructure:"user_id"`
	FilePath            string `json:"file_path,omitempty" mapstructure:"file_path"`
	RawRef              string `json:"raw_ref,omitempty" mapstructure:"raw_ref"`
	Format              string `json:"format,omitempty" mapstructure:"format"`
	IncludeNonCompleted bool   `json:"include_non_completed,omitempty" mapstructure:"include_non_completed"`
}

// Validate rejects metadata without a source.
func (m Metadata) Validate() error {
	if m.Source == "" {
		return &ValidationError{Field: "source"}
	}
	return nil
}

// RawRefOr resolves the payload locator: raw_ref, then file_path, then def.
func (m Metadata) RawRefOr(def string) string {
	if m.RawRef != "" {
		return m.RawRef
	}
	if m.FilePath != "" {
		return m.FilePath
	}
	return def
}
