package meta

// Validate checks invariants that span files: every call key is unique.
func (r *AnalyzeResult) Validate() error {
	seen := make(map[string]struct{}, len(r.Services))
	for _, s := range r.Services {
		key := CallKey(s)
		if _, ok := seen[key]; ok {
			return &DuplicateServiceError{Key: key}
		}
		seen[key] = struct{}{}
	}
	return nil
}
