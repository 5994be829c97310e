// Package expand resolves placeholder tokens in artifact path templates
// into concrete paths. Templates mark placeholders with double percent
// signs, e.g. %%environ_systemroot%%\System32\winevt\Logs.
package expand

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment holds the resolved values placeholders expand to. It is
// injected rather than read from process state so collections can target
// another user's profile and tests can pin every value.
type Environment struct {
	SystemRoot      string
	SystemDrive     string
	ProgramFiles    string
	ProgramFilesX86 string
	ProgramData     string
	UserProfile     string
	AppData         string
	LocalAppData    string
	Temp            string
	Username        string
}

// HostEnvironment builds an Environment from the process environment,
// falling back to conventional Windows locations when a variable is unset.
// On non-Windows hosts most values fall back to those conventions, which
// keeps dry runs and catalog validation usable anywhere.
func HostEnvironment() Environment {
	env := Environment{
		SystemRoot:      os.Getenv("SystemRoot"),
		SystemDrive:     os.Getenv("SystemDrive"),
		ProgramFiles:    os.Getenv("ProgramFiles"),
		ProgramFilesX86: os.Getenv("ProgramFiles(x86)"),
		ProgramData:     os.Getenv("ProgramData"),
		UserProfile:     os.Getenv("USERPROFILE"),
		AppData:         os.Getenv("APPDATA"),
		LocalAppData:    os.Getenv("LOCALAPPDATA"),
		Temp:            os.Getenv("TEMP"),
		Username:        os.Getenv("USERNAME"),
	}

	if env.SystemDrive == "" {
		if len(env.SystemRoot) >= 2 && env.SystemRoot[1] == ':' {
			env.SystemDrive = env.SystemRoot[:2]
		} else {
			env.SystemDrive = "C:"
		}
	}
	if env.SystemRoot == "" {
		env.SystemRoot = env.SystemDrive + `\Windows`
	}
	if env.ProgramFiles == "" {
		env.ProgramFiles = env.SystemDrive + `\Program Files`
	}
	if env.ProgramFilesX86 == "" {
		env.ProgramFilesX86 = env.ProgramFiles + ` (x86)`
	}
	if env.ProgramData == "" {
		if v := os.Getenv("ALLUSERSPROFILE"); v != "" {
			env.ProgramData = v
		} else {
			env.ProgramData = env.SystemDrive + `\ProgramData`
		}
	}
	if env.UserProfile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			env.UserProfile = home
		}
	}
	if env.AppData == "" && env.UserProfile != "" {
		env.AppData = env.UserProfile + `\AppData\Roaming`
	}
	if env.LocalAppData == "" && env.UserProfile != "" {
		env.LocalAppData = env.UserProfile + `\AppData\Local`
	}
	if env.Temp == "" {
		if v := os.Getenv("TMP"); v != "" {
			env.Temp = v
		} else if env.LocalAppData != "" {
			env.Temp = env.LocalAppData + `\Temp`
		}
	}
	if env.Username == "" {
		if v := os.Getenv("USER"); v != "" {
			env.Username = v
		} else if env.UserProfile != "" {
			env.Username = filepath.Base(env.UserProfile)
		}
	}
	return env
}

// Expander substitutes placeholder tokens using a fixed Environment and
// applies the catalog correction rules afterwards.
type Expander struct {
	env       Environment
	overrides []Override
}

// New returns an Expander with the default correction rules.
func New(env Environment) *Expander {
	return &Expander{env: env, overrides: DefaultOverrides()}
}

// NewWithOverrides returns an Expander using the given correction rules
// instead of the defaults.
func NewWithOverrides(env Environment, overrides []Override) *Expander {
	return &Expander{env: env, overrides: overrides}
}

const (
	tokenMarker   = "%%"
	usernameToken = "%%users.username%%"
)

// Expand resolves every placeholder in template. An unknown or unterminated
// placeholder returns an error and no paths; callers record it against the
// artifact definition and move on.
//
// When the template begins with the username placeholder directly followed
// by a path separator, the whole resolved profile path is substituted
// instead of the bare account name: such templates are rooted in the user's
// profile directory, not in the current working directory.
func (e *Expander) Expand(template string) ([]string, error) {
	s := template
	if len(s) > len(usernameToken) && strings.EqualFold(s[:len(usernameToken)], usernameToken) {
		if sep := s[len(usernameToken)]; sep == '\\' || sep == '/' {
			s = e.env.UserProfile + s[len(usernameToken):]
		}
	}

	resolved, err := e.substitute(s)
	if err != nil {
		return nil, err
	}
	for _, ov := range e.overrides {
		resolved = ov.Apply(resolved)
	}
	return []string{resolved}, nil
}

func (e *Expander) substitute(s string) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(s, tokenMarker)
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.Index(s[start+len(tokenMarker):], tokenMarker)
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in template %q", s)
		}
		token := s[start+len(tokenMarker) : start+len(tokenMarker)+end]
		value, known := e.tokenValue(token)
		if !known {
			return "", fmt.Errorf("unknown placeholder %q", tokenMarker+token+tokenMarker)
		}
		b.WriteString(s[:start])
		b.WriteString(value)
		s = s[start+2*len(tokenMarker)+end:]
	}
}

// tokenValue maps a placeholder name to its resolved value. The SID
// placeholder always resolves to a wildcard segment: catalogs use it to
// enumerate per-user keys and paths, never to address one literal SID.
func (e *Expander) tokenValue(token string) (string, bool) {
	switch strings.ToLower(token) {
	case "environ_systemroot", "environ_windir":
		return e.env.SystemRoot, true
	case "environ_systemdrive":
		return e.env.SystemDrive, true
	case "environ_programfiles":
		return e.env.ProgramFiles, true
	case "environ_programfilesx86":
		return e.env.ProgramFilesX86, true
	case "environ_allusersprofile", "environ_allusersappdata":
		return e.env.ProgramData, true
	case "users.userprofile":
		return e.env.UserProfile, true
	case "users.appdata":
		return e.env.AppData, true
	case "users.localappdata":
		return e.env.LocalAppData, true
	case "users.temp":
		return e.env.Temp, true
	case "users.username":
		return e.env.Username, true
	case "users.sid":
		return "*", true
	}
	return "", false
}
