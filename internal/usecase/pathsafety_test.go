package usecase

import (
	"path/filepath"
	"testing"
)

func TestIsSafeMember(t *testing.T) {
	target := filepath.Join(t.TempDir(), "kodi")
	cases := []struct {
		name string
		want bool
	}{
		{"userdata/guisettings.xml", true},
		{"addons/plugin/../plugin2/addon.xml", true},
		{"userdata/./Database/MyVideos131.db", true},
		{"userdata/../../escape.txt", false},
		{"../evil.txt", false},
		{"../kodi2/evil.txt", false},
		{`userdata\..\..\evil.txt`, false},
		{"/etc/passwd", false},
		{`\windows\evil.txt`, false},
		{"C:/evil.txt", false},
		{"c:evil.txt", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsSafeMember(target, tc.name); got != tc.want {
			t.Errorf("IsSafeMember(%q) = %t, want %t", tc.name, got, tc.want)
		}
	}
}

func TestCheckMember_Reasons(t *testing.T) {
	target := t.TempDir()
	cases := map[string]string{
		"":              "empty member name",
		"/abs.txt":      "absolute path",
		"D:/drive.txt":  "drive-qualified path",
		"../up.txt":     "resolves outside the target directory",
		"a/../../b.txt": "resolves outside the target directory",
	}
	for name, want := range cases {
		reason, ok := checkMember(target, name)
		if ok {
			t.Errorf("checkMember(%q) accepted", name)
			continue
		}
		if reason != want {
			t.Errorf("checkMember(%q) reason = %q, want %q", name, reason, want)
		}
	}
}

func TestIsSafeMember_CaseFolding(t *testing.T) {
	prev := foldPathCase
	t.Cleanup(func() { foldPathCase = prev })

	target := filepath.Join(t.TempDir(), "Kodi")

	foldPathCase = false
	if IsSafeMember(target, "../kodi/userdata/a.txt") {
		t.Fatal("case-sensitive comparison must refuse a differently cased sibling")
	}
	foldPathCase = true
	if !IsSafeMember(target, "../kodi/userdata/a.txt") {
		t.Fatal("case-insensitive comparison must accept the same directory in another case")
	}
}

func TestIsFilesystemRoot(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/..", true},
		{"C:", true},
		{`C:\`, true},
		{"c:/", true},
		{"", false},
		{"   ", false},
		{t.TempDir(), false},
	}
	for _, tc := range cases {
		if got := IsFilesystemRoot(tc.path); got != tc.want {
			t.Errorf("IsFilesystemRoot(%q) = %t, want %t", tc.path, got, tc.want)
		}
	}
}

func TestNormalizeMemberName(t *testing.T) {
	if got := NormalizeMemberName(`userdata\Database\MyVideos131.db`); got != "userdata/Database/MyVideos131.db" {
		t.Fatalf("unexpected name: %s", got)
	}
}
