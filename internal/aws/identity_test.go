package aws

import "testing"

func TestIdentityPrincipal(t *testing.T) {
	tests := []struct {
		arn  string
		want string
	}{
		{"arn:aws:sts::123456789012:assumed-role/AWSReservedSSO_Admin_abc/alice@example.com", "AWSReservedSSO_Admin_abc (alice@example.com)"},
		{"arn:aws:iam::123456789012:user/ci/deployer", "deployer"},
		{"arn:aws:iam::123456789012:user/bob", "bob"},
		{"arn:aws:iam::123456789012:root", "root"},
		{"", "AIDAEXAMPLE"},
	}
	for _, tt := range tests {
		id := &Identity{Arn: tt.arn, UserID: "AIDAEXAMPLE"}
		if got := id.Principal(); got != tt.want {
			t.Errorf("Principal(%q) = %q, want %q", tt.arn, got, tt.want)
		}
	}
}
