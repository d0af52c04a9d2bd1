package manager

// SanityReport describes whether the binary can run real inference.
type SanityReport struct {
	RealInferEnabled bool   `json:"real_infer_enabled"`
	Runtime          string `json:"runtime"`
	Error            string `json:"error,omitempty"`
}

// SanityCheck reports runtime availability. It does not mutate state and
// is safe to call at any time.
func SanityCheck() SanityReport {
	if !llamaBuilt {
		return SanityReport{
			Runtime: "stub",
			Error:   "llama support not built (missing 'llama' build tag)",
		}
	}
	return SanityReport{RealInferEnabled: true, Runtime: "llama.cpp"}
}
