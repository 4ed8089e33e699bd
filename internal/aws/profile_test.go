package aws

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	credentials := writeFile(t, dir, "credentials", `
[default]
aws_access_key_id = AKIA...

[bench]
aws_access_key_id = AKIA...
`)
	config := writeFile(t, dir, "config", `
# shared config
[default]
region = us-east-1

[profile bench]
region = eu-west-1

[sso-session corp]
sso_region = ap-southeast-1

[profile sso-admin]
sso_session = corp
region = us-west-2
`)

	profiles, err := loadProfiles(credentials, config)
	if err != nil {
		t.Fatalf("loadProfiles() error = %v", err)
	}

	want := []Profile{
		{Name: "default", Region: "us-east-1", Source: "credentials"},
		{Name: "bench", Region: "eu-west-1", Source: "credentials"},
		{Name: "sso-admin", Region: "us-west-2", Source: "config", SSO: true},
	}
	if len(profiles) != len(want) {
		t.Fatalf("got %d profiles, want %d: %+v", len(profiles), len(want), profiles)
	}
	for i := range want {
		if profiles[i] != want[i] {
			t.Errorf("profiles[%d] = %+v, want %+v", i, profiles[i], want[i])
		}
	}
}

func TestLoadProfilesIgnoresNonProfileSections(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "config", `
[profile a]
[sso-session corp]
region = ap-southeast-1
`)

	profiles, err := loadProfiles(filepath.Join(dir, "missing"), config)
	if err != nil {
		t.Fatalf("loadProfiles() error = %v", err)
	}
	if len(profiles) != 1 || profiles[0].Region != "" {
		t.Fatalf("expected profile a without the session's region, got %+v", profiles)
	}
}

func TestLoadProfilesNoFiles(t *testing.T) {
	dir := t.TempDir()
	profiles, err := loadProfiles(filepath.Join(dir, "credentials"), filepath.Join(dir, "config"))
	if err != nil {
		t.Fatalf("loadProfiles() error = %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %+v", profiles)
	}
}

func TestHasProfileHonorsEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", writeFile(t, dir, "creds", "[ci]\n"))
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "none"))

	if !HasProfile("ci") {
		t.Error("expected ci profile from AWS_SHARED_CREDENTIALS_FILE")
	}
	if HasProfile("prod") {
		t.Error("unexpected prod profile")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
