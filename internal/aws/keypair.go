package aws

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

// EnsureKeyPair creates the key pair and writes its private key to spec.PrivateKeyPath with mode 0400.
// An existing key pair is reused; its private key is expected to already be on disk.
func (c *Client) EnsureKeyPair(ctx context.Context, spec provider.KeyPairSpec) provider.Result {
	h := types.NewHandle(types.KindKeyPair, spec.Name)

	_, err := c.EC2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{spec.Name},
	})
	if err == nil {
		c.logger.WithField("key", spec.Name).Info("reusing existing key pair")
		return provider.Result{Outcome: provider.OutcomeAlreadyExists, Handle: h}
	}
	if !IsNotFound(err) {
		return provider.Failed(Classify(err), h, err)
	}

	output, err := c.EC2.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
		KeyName:           aws.String(spec.Name),
		TagSpecifications: ec2TagSpec(ec2types.ResourceTypeKeyPair, spec.Tags),
	})
	if err != nil {
		return createResult(h, err)
	}

	if spec.PrivateKeyPath != "" {
		if err := writePrivateKey(spec.PrivateKeyPath, deref(output.KeyMaterial)); err != nil {
			return provider.Failed(provider.OutcomeOtherError, h, err)
		}
	}

	c.logger.WithField("key", spec.Name).WithField("path", spec.PrivateKeyPath).Info("key pair created")
	return provider.Created(h)
}

// writePrivateKey writes key material readable only by the owner
func writePrivateKey(path, material string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	// a previous key with mode 0400 cannot be truncated in place
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace private key: %w", err)
	}
	if err := os.WriteFile(path, []byte(material), 0400); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}
