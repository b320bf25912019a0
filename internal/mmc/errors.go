package mmc

import "fmt"

// ConfigError reports an invalid configuration value, detected before
// dispatch starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("mmc: config error on %q: %s", e.Field, e.Reason)
}

// MeshError marks a non-conforming mesh condition: a bad node index or a
// degenerate tet found by NewMesh, or a neighbor entry without a matching
// back-reference found by Mesh.Validate (I1/P7). Dispatch runs Validate
// before starting workers and returns the first MeshError instead of
// running the batch; the photon engine does not check neighbor entries
// while a photon crosses faces.
type MeshError struct {
	Elem   int32
	Reason string
}

func (e *MeshError) Error() string {
	return fmt.Sprintf("mmc: mesh error at elem %d: %s", e.Elem, e.Reason)
}

// OverflowError reports that the detected-photon buffer reached MaxDet;
// it is surfaced as a non-fatal warning alongside a successful Result,
// not returned as a fatal error from Dispatch.
type OverflowError struct {
	Dropped int64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("mmc: detected-photon buffer overflow, dropped %d records", e.Dropped)
}

// NumericError reports a degenerate ray-tet intersection that survived
// MaxTrial fix-up attempts. The photon is terminated Errored and the batch
// continues.
type NumericError struct {
	PhotonID int64
	Elem     int32
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("mmc: numeric error on photon %d at elem %d: degenerate intersection", e.PhotonID, e.Elem)
}

// WorkerError is the one fatal kind: a worker goroutine hit an
// unrecoverable condition, the shared error flag was raised, and the
// dispatcher stopped the batch at the next barrier.
type WorkerError struct {
	WorkerID int
	Err      error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("mmc: worker %d failed: %v", e.WorkerID, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }
