package payments

import (
	"strings"

	"github.com/baanhub/baanhub-backend/pkg/omise"
)

// qrStrategy pulls a scannable reference out of one known response shape.
type qrStrategy func(*omise.Source) string

// Ordered by preference: hosted image download, inline image, text reference.
var qrStrategies = []qrStrategy{
	qrImageDownloadURI,
	qrImageURI,
	qrTextReference,
}

// ExtractQRCode returns the first reference found by the strategies.
func ExtractQRCode(source *omise.Source) (string, bool) {
	if source == nil {
		return "", false
	}
	for _, strategy := range qrStrategies {
		if code := strings.TrimSpace(strategy(source)); code != "" {
			return code, true
		}
	}
	return "", false
}

func qrImageDownloadURI(source *omise.Source) string {
	if source.ScannableCode == nil || source.ScannableCode.Image == nil {
		return ""
	}
	return source.ScannableCode.Image.DownloadURI
}

func qrImageURI(source *omise.Source) string {
	if source.ScannableCode == nil || source.ScannableCode.Image == nil {
		return ""
	}
	return source.ScannableCode.Image.URI
}

func qrTextReference(source *omise.Source) string {
	if source.References != nil && strings.TrimSpace(source.References.ReferenceNumber1) != "" {
		return source.References.ReferenceNumber1
	}
	if source.ScannableCode != nil {
		return source.ScannableCode.Value
	}
	return ""
}
