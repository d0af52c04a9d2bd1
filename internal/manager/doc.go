// Package manager owns the lifecycle of the loaded model and coordinates
// generation against it. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: Session, Snapshot and progress types.
//   - errors.go: LoadError, GenerationError and helpers (IsLoadError, IsBusy).
//   - prepare.go: weight file validation and single-entry archive extraction.
//   - load.go: Load and the Loading -> Ready | Failed transition.
//   - unload.go: Unload and Close.
//   - admission.go: the per-session busy gate.
//   - infer.go: Generate, the entry point for a generation.
//   - stream.go: the lazy, cancellable chunk Stream.
//   - helpers.go: memory estimation for the load precheck.
//   - recent.go: recently loaded models, persisted as JSON.
//   - status_report.go: Snapshot reporting.
//
// Build tags and runtimes:
//
//   - In-process llama (standard):
//     Uses the go-llama.cpp runtime. Enabled with `-tags=llama`.
//     Files: adapter_llama.go, llama_cgo.go (linker rpath hints).
//     A no-CGO stub exists when the tag is not set: adapter_llama_stub.go.
//
// External packages should use public methods only (New/NewWithConfig, Load,
// Unload, Generate, Snapshot). Internal types are subject to change.
package manager
