package requirement

import (
	"github.com/bilusteknoloji/pipgrub/internal/distname"
	"github.com/bilusteknoloji/pipgrub/internal/marker"
)

// InterpreterProfile is the fixed tuple markers and requires-python
// specifiers are evaluated against: interpreter language version,
// implementation name & version, OS name, and platform tags in
// compatibility order (most to least preferred).
type InterpreterProfile struct {
	PythonVersion     string
	PythonFullVersion string
	Implementation    string
	ImplementationVer string
	PlatformPython    string
	SysPlatform       string
	OsName            string
	CompatTags        []distname.WheelTag
}

// MarkerEnv projects the profile into a marker.Env, activating extra as
// the "extra" marker variable (empty string when evaluating a
// requirement with no requested extra).
func (p InterpreterProfile) MarkerEnv(extra string) marker.Env {
	return marker.Env{
		PythonVersion:     p.PythonVersion,
		PythonFullVersion: p.PythonFullVersion,
		Implementation:    p.Implementation,
		ImplementationVer: p.ImplementationVer,
		PlatformPython:    p.PlatformPython,
		SysPlatform:       p.SysPlatform,
		OsName:            p.OsName,
		Extra:             extra,
	}
}
