// Package validation checks user input before it reaches the Emarsys API.
//
// ValidateBaseURL guards the API root a client signs requests for. Plain
// http is accepted only for loopback hosts, so a local mock server works
// while a mistyped production URL cannot downgrade the transport. Cloud
// metadata endpoints are always rejected.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateBaseURL validates an API root such as https://api.emarsys.net/api/v2/.
func ValidateBaseURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid base URL scheme: only http and https are allowed, got %q", parsedURL.Scheme)
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("base URL must contain a hostname")
	}
	if parsedURL.User != nil {
		return fmt.Errorf("base URL must not contain credentials")
	}
	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return fmt.Errorf("base URL must not contain a query or fragment")
	}
	if isCloudMetadata(hostname) {
		return fmt.Errorf("cloud metadata endpoints are not allowed")
	}
	if parsedURL.Scheme == "http" && !isLoopback(hostname) {
		return fmt.Errorf("base URL must use https (http is only allowed for localhost)")
	}
	return nil
}

func isLoopback(hostname string) bool {
	lowercase := strings.ToLower(hostname)
	if lowercase == "localhost" || strings.HasSuffix(lowercase, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

func isCloudMetadata(hostname string) bool {
	lowercase := strings.ToLower(hostname)
	switch lowercase {
	case "169.254.169.254", // AWS, Azure, GCP, DigitalOcean
		"metadata.google.internal",
		"metadata",
		"instance-data",
		"fd00:ec2::254":
		return true
	}
	return strings.HasSuffix(lowercase, ".metadata.google.internal")
}
