package output

// Processor applies the configured post-processing steps to objects.
type Processor struct {
	// MaskSecrets replaces secret data with RedactedValue.
	// Security critical: should rarely be disabled.
	MaskSecrets bool

	// Slim drops ExcludedFields.
	Slim           bool
	ExcludedFields [][]string
}

// DefaultProcessor masks secrets and drops the default excluded fields.
func DefaultProcessor() *Processor {
	return &Processor{
		MaskSecrets:    true,
		Slim:           true,
		ExcludedFields: DefaultExcludedFields(),
	}
}

// Process returns the printable form of obj. kind is used when the object
// does not carry its own, as is the case for list items.
func (p *Processor) Process(kind string, obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	if k, ok := obj["kind"].(string); ok && k != "" {
		kind = k
	}

	result := obj
	if p.MaskSecrets && IsSecret(kind) {
		result = MaskSecret(result)
	}
	if p.Slim {
		result = SlimResource(result, p.ExcludedFields)
	}
	return result
}

// ProcessList applies Process to every item.
func (p *Processor) ProcessList(kind string, objects []map[string]any) []map[string]any {
	result := make([]map[string]any, len(objects))
	for i, obj := range objects {
		result[i] = p.Process(kind, obj)
	}
	return result
}
