package aws

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Profile is one named profile from the shared AWS files
type Profile struct {
	Name   string
	Region string
	Source string // file the profile was first seen in: credentials or config
	SSO    bool   // signs in through IAM Identity Center
}

// sharedFiles returns the credentials and config paths, honoring the same env overrides as the SDK
func sharedFiles() (credentials, config string, err error) {
	credentials = os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	config = os.Getenv("AWS_CONFIG_FILE")
	if credentials != "" && config != "" {
		return credentials, config, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}
	if credentials == "" {
		credentials = filepath.Join(home, ".aws", "credentials")
	}
	if config == "" {
		config = filepath.Join(home, ".aws", "config")
	}
	return credentials, config, nil
}

// ListProfiles returns the profiles known to the shared files, default first
func ListProfiles() ([]Profile, error) {
	credentials, config, err := sharedFiles()
	if err != nil {
		return nil, err
	}
	return loadProfiles(credentials, config)
}

// HasProfile reports whether name is defined in either shared file
func HasProfile(name string) bool {
	profiles, err := ListProfiles()
	if err != nil {
		return false
	}
	for _, p := range profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

// loadProfiles merges both files. A missing file contributes nothing.
func loadProfiles(credentialsPath, configPath string) ([]Profile, error) {
	byName := map[string]*Profile{}

	sources := []struct {
		path    string
		source  string
		section func(header string) (string, bool)
	}{
		{credentialsPath, "credentials", credentialsSection},
		{configPath, "config", configSection},
	}
	for _, src := range sources {
		found, err := readSharedFile(src.path, src.source, src.section)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, p := range found {
			merge(byName, p)
		}
	}

	profiles := make([]Profile, 0, len(byName))
	for _, p := range byName {
		profiles = append(profiles, *p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if (profiles[i].Name == "default") != (profiles[j].Name == "default") {
			return profiles[i].Name == "default"
		}
		return profiles[i].Name < profiles[j].Name
	})
	return profiles, nil
}

// merge folds p into byName; the first file wins on source, region and SSO fill gaps
func merge(byName map[string]*Profile, p Profile) {
	existing, ok := byName[p.Name]
	if !ok {
		byName[p.Name] = &p
		return
	}
	if existing.Region == "" {
		existing.Region = p.Region
	}
	existing.SSO = existing.SSO || p.SSO
}

// credentialsSection names the profile of a credentials header: every section is a profile
func credentialsSection(header string) (string, bool) {
	return header, header != ""
}

// configSection names the profile of a config header: [default] or [profile name].
// Other sections such as [sso-session x] or [services x] are not profiles.
func configSection(header string) (string, bool) {
	if header == "default" {
		return header, true
	}
	name, ok := strings.CutPrefix(header, "profile ")
	name = strings.TrimSpace(name)
	return name, ok && name != ""
}

func readSharedFile(path, source string, section func(string) (string, bool)) ([]Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var (
		profiles []Profile
		current  = -1 // index into profiles, -1 outside a profile section
	)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = -1
			if name, ok := section(strings.TrimSpace(line[1 : len(line)-1])); ok {
				profiles = append(profiles, Profile{Name: name, Source: source})
				current = len(profiles) - 1
			}
			continue
		}
		if current < 0 {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "region":
			profiles[current].Region = strings.TrimSpace(value)
		case "sso_start_url", "sso_session":
			profiles[current].SSO = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}
