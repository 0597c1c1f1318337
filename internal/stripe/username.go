package stripe

import (
	"fmt"
	"strings"

	stripego "github.com/stripe/stripe-go/v82"
)

// Username sources accepted by NewExtractor.
const (
	SourceMetadata     = "metadata"
	SourceCustomFields = "custom_fields"
	SourceAny          = "any"
)

// UsernameExtractor pulls the GitHub username out of a checkout session.
// A missing username is reported as "", never as an error.
type UsernameExtractor interface {
	Username(session *stripego.CheckoutSession) string
}

// MetadataExtractor reads the username from the session metadata map.
type MetadataExtractor struct {
	Key string
}

func (e MetadataExtractor) Username(session *stripego.CheckoutSession) string {
	if session == nil {
		return ""
	}
	return strings.TrimSpace(session.Metadata[e.Key])
}

// CustomFieldsExtractor takes the text value of the first custom field whose key matches.
type CustomFieldsExtractor struct {
	Key string
}

func (e CustomFieldsExtractor) Username(session *stripego.CheckoutSession) string {
	if session == nil {
		return ""
	}
	for _, field := range session.CustomFields {
		if field == nil || field.Key != e.Key {
			continue
		}
		if field.Text == nil {
			return ""
		}
		return strings.TrimSpace(field.Text.Value)
	}
	return ""
}

// AnyExtractor tries each extractor in order and returns the first non-empty username.
type AnyExtractor []UsernameExtractor

func (e AnyExtractor) Username(session *stripego.CheckoutSession) string {
	for _, extractor := range e {
		if username := extractor.Username(session); username != "" {
			return username
		}
	}
	return ""
}

// NewExtractor builds the extractor for a configured source.
func NewExtractor(source, key string) (UsernameExtractor, error) {
	if key == "" {
		return nil, fmt.Errorf("username field key must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceMetadata:
		return MetadataExtractor{Key: key}, nil
	case SourceCustomFields:
		return CustomFieldsExtractor{Key: key}, nil
	case SourceAny, "":
		return AnyExtractor{MetadataExtractor{Key: key}, CustomFieldsExtractor{Key: key}}, nil
	default:
		return nil, fmt.Errorf("unknown username source %q", source)
	}
}
