package expand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testEnv() Environment {
	return Environment{
		SystemRoot:      `C:\Windows`,
		SystemDrive:     `C:`,
		ProgramFiles:    `C:\Program Files`,
		ProgramFilesX86: `C:\Program Files (x86)`,
		ProgramData:     `C:\ProgramData`,
		UserProfile:     `C:\Users\alice`,
		AppData:         `C:\Users\alice\AppData\Roaming`,
		LocalAppData:    `C:\Users\alice\AppData\Local`,
		Temp:            `C:\Users\alice\AppData\Local\Temp`,
		Username:        "alice",
	}
}

func TestExpand(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "system root",
			template: `%%environ_systemroot%%\System32\winevt\Logs`,
			expected: `C:\Windows\System32\winevt\Logs`,
		},
		{
			name:     "windir alias",
			template: `%%environ_windir%%\Prefetch`,
			expected: `C:\Windows\Prefetch`,
		},
		{
			name:     "system drive",
			template: `%%environ_systemdrive%%\$Recycle.Bin`,
			expected: `C:\$Recycle.Bin`,
		},
		{
			name:     "program files",
			template: `%%environ_programfiles%%\Vendor\app.log`,
			expected: `C:\Program Files\Vendor\app.log`,
		},
		{
			name:     "program files x86",
			template: `%%environ_programfilesx86%%\Vendor\app.log`,
			expected: `C:\Program Files (x86)\Vendor\app.log`,
		},
		{
			name:     "all users profile",
			template: `%%environ_allusersprofile%%\Microsoft\Search`,
			expected: `C:\ProgramData\Microsoft\Search`,
		},
		{
			name:     "user profile",
			template: `%%users.userprofile%%\NTUSER.DAT`,
			expected: `C:\Users\alice\NTUSER.DAT`,
		},
		{
			name:     "appdata",
			template: `%%users.appdata%%\Mozilla\Firefox\Profiles`,
			expected: `C:\Users\alice\AppData\Roaming\Mozilla\Firefox\Profiles`,
		},
		{
			name:     "localappdata",
			template: `%%users.localappdata%%\Google\Chrome\User Data`,
			expected: `C:\Users\alice\AppData\Local\Google\Chrome\User Data`,
		},
		{
			name:     "temp",
			template: `%%users.temp%%\dropped.exe`,
			expected: `C:\Users\alice\AppData\Local\Temp\dropped.exe`,
		},
		{
			name:     "username inside template expands to bare name",
			template: `%%environ_systemdrive%%\Users\%%users.username%%\Desktop`,
			expected: `C:\Users\alice\Desktop`,
		},
		{
			name:     "leading username expands to full profile path",
			template: `%%users.username%%\AppData\Local\X`,
			expected: `C:\Users\alice\AppData\Local\X`,
		},
		{
			name:     "multiple tokens",
			template: `%%environ_systemroot%%\System32\config\%%users.username%%.bak`,
			expected: `C:\Windows\System32\config\alice.bak`,
		},
		{
			name:     "uppercase token accepted",
			template: `%%ENVIRON_SYSTEMROOT%%\Tasks`,
			expected: `C:\Windows\Tasks`,
		},
		{
			name:     "no tokens passes through",
			template: `C:\Windows\System32\drivers\etc\hosts`,
			expected: `C:\Windows\System32\drivers\etc\hosts`,
		},
	}

	exp := New(testEnv())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			paths, err := exp.Expand(tc.template)
			require.NoError(t, err)
			require.Len(t, paths, 1)
			require.Equal(t, tc.expected, paths[0])
		})
	}
}

func TestExpandSIDBecomesWildcard(t *testing.T) {
	exp := New(testEnv())

	paths, err := exp.Expand(`HKEY_USERS\%%users.sid%%\Software\Microsoft\Windows\CurrentVersion\Run`)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, `HKEY_USERS\*\Software\Microsoft\Windows\CurrentVersion\Run`, paths[0])
	require.True(t, strings.Contains(paths[0], `\*\`))
}

func TestExpandErrors(t *testing.T) {
	exp := New(testEnv())

	_, err := exp.Expand(`%%users.homedir%%\Downloads`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "%%users.homedir%%")

	_, err = exp.Expand(`%%environ_systemroot\System32`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated")
}

func TestExpandAppliesOverrides(t *testing.T) {
	exp := New(testEnv())

	paths, err := exp.Expand(`%%users.localappdata%%\ConnectedDevicesPlatform\L.alice\ActivitiesCache.db`)
	require.NoError(t, err)
	require.Equal(t, `C:\Users\alice\AppData\Local\ConnectedDevicesPlatform\*\ActivitiesCache.db`, paths[0])
}

func TestExpandWithoutOverrides(t *testing.T) {
	exp := NewWithOverrides(testEnv(), nil)

	paths, err := exp.Expand(`%%users.localappdata%%\ConnectedDevicesPlatform\L.alice\ActivitiesCache.db`)
	require.NoError(t, err)
	require.Equal(t, `C:\Users\alice\AppData\Local\ConnectedDevicesPlatform\L.alice\ActivitiesCache.db`, paths[0])
}

func TestHostEnvironmentHasFallbacks(t *testing.T) {
	env := HostEnvironment()

	require.NotEmpty(t, env.SystemDrive)
	require.NotEmpty(t, env.SystemRoot)
	require.NotEmpty(t, env.ProgramFiles)
	require.NotEmpty(t, env.ProgramData)
}
