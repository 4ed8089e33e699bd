package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Identity is the principal the client's credentials resolve to
type Identity struct {
	Account string
	Arn     string
	UserID  string
}

// Whoami asks STS which principal is behind the credentials. It is the cheapest
// call that proves the credentials work.
func (c *Client) Whoami(ctx context.Context) (*Identity, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	return &Identity{
		Account: deref(out.Account),
		Arn:     deref(out.Arn),
		UserID:  deref(out.UserId),
	}, nil
}

// Principal is a readable name taken from the ARN resource.
// arn:aws:sts::1:assumed-role/Admin/alice becomes "Admin (alice)",
// arn:aws:iam::1:user/ci/deployer becomes "deployer".
func (id *Identity) Principal() string {
	parts := strings.SplitN(id.Arn, ":", 6)
	if len(parts) != 6 {
		return id.UserID
	}
	kind, path, _ := strings.Cut(parts[5], "/")
	if path == "" {
		return parts[5] // root
	}
	segments := strings.Split(path, "/")
	if kind == "assumed-role" && len(segments) >= 2 {
		return fmt.Sprintf("%s (%s)", segments[0], segments[len(segments)-1])
	}
	return segments[len(segments)-1]
}
