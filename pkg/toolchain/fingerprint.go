package toolchain

import (
	"runtime"
)

// Fingerprint is the deterministic toolchain record carried in the manifest
// and compared against during replay (§4.1, §4.11).
type Fingerprint struct {
	OS            string            `json:"os"`
	Arch          string            `json:"arch"`
	RuntimeVersion string           `json:"runtime_version"`
	ProbeVersions map[string]string `json:"probe_versions"`
}

// Record captures the current process's toolchain fingerprint. ProbeVersion
// reporters are supplied by the caller (collector) since the core does not
// know the concrete probe set ahead of time.
func Record(probeVersions map[string]string) Fingerprint {
	versions := make(map[string]string, len(probeVersions))
	for k, v := range probeVersions {
		versions[k] = v
	}
	return Fingerprint{
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		RuntimeVersion: runtime.Version(),
		ProbeVersions:  versions,
	}
}

// Matches reports whether two fingerprints agree on OS, runtime version,
// and every probe version present in both. Used by replay's toolchain
// comparison (§4.11).
func (f Fingerprint) Matches(other Fingerprint) bool {
	if f.OS != other.OS || f.RuntimeVersion != other.RuntimeVersion {
		return false
	}
	for k, v := range f.ProbeVersions {
		if ov, ok := other.ProbeVersions[k]; ok && ov != v {
			return false
		}
	}
	return true
}
