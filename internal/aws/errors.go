package aws

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/vietdv277/clusterbench/pkg/provider"
	"github.com/vietdv277/clusterbench/pkg/types"
)

var notFoundCodes = map[string]bool{
	"TargetGroupNotFound":        true,
	"LoadBalancerNotFound":       true,
	"ListenerNotFound":           true,
	"RuleNotFound":               true,
	"InvalidGroup.NotFound":      true,
	"InvalidKeyPair.NotFound":    true,
	"InvalidInstanceID.NotFound": true,
	"InvalidVolume.NotFound":     true,
	"InvalidVpcID.NotFound":      true,
}

var alreadyExistsCodes = map[string]bool{
	"DuplicateTargetGroupName":    true,
	"DuplicateLoadBalancerName":   true,
	"DuplicateListener":           true,
	"PriorityInUse":               true,
	"InvalidGroup.Duplicate":      true,
	"InvalidKeyPair.Duplicate":    true,
	"InvalidPermission.Duplicate": true,
}

var inUseCodes = map[string]bool{
	"ResourceInUse":       true,
	"DependencyViolation": true,
	"VolumeInUse":         true,
}

// errorCode returns the API error code carried by err, or ""
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// Classify maps a provider error to an Outcome by its API error code
func Classify(err error) provider.Outcome {
	code := errorCode(err)
	switch {
	case notFoundCodes[code]:
		return provider.OutcomeNotFound
	case alreadyExistsCodes[code]:
		return provider.OutcomeAlreadyExists
	case inUseCodes[code]:
		return provider.OutcomeInUse
	default:
		return provider.OutcomeOtherError
	}
}

// IsNotFound reports whether err means the resource does not exist
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == provider.OutcomeNotFound
}

// IsAlreadyExists reports whether err means the resource already exists
func IsAlreadyExists(err error) bool {
	return err != nil && Classify(err) == provider.OutcomeAlreadyExists
}

// deleteResult turns the error of a delete call into a Result
func deleteResult(h types.ResourceHandle, err error) provider.Result {
	if err == nil {
		return provider.Deleted(h)
	}
	return provider.Failed(Classify(err), h, err)
}

// createResult turns the error of a create call into a Result
func createResult(h types.ResourceHandle, err error) provider.Result {
	if err == nil {
		return provider.Created(h)
	}
	return provider.Failed(Classify(err), h, err)
}
