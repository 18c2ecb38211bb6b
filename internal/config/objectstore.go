package config

import (
	"net/url"
	"strings"
)

// ObjectStore holds the S3-compatible connection settings used to browse
// and fetch snapshots.
type ObjectStore struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Validate checks the settings locally. It does not touch the network.
func (c *ObjectStore) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fieldErrorf("bucket", "must not be empty")
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fieldErrorf("endpoint", "must be a full URL, e.g. https://s3.example.com")
		}
	}
	return nil
}

// MaskedAccessKey returns the access key with all but the last four
// characters hidden.
func (c *ObjectStore) MaskedAccessKey() string {
	return MaskSecret(c.AccessKeyID)
}

// MaskedSecretKey returns the secret key with all but the last four
// characters hidden.
func (c *ObjectStore) MaskedSecretKey() string {
	return MaskSecret(c.SecretAccessKey)
}
