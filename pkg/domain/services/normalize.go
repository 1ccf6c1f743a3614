package services

import (
	"strings"
)

// MinLocationKeyLength is the length a location key must exceed to be usable
const MinLocationKeyLength = 3

// CleanValue trims a feed value and returns "" when it is absent: empty,
// "N/A", or "none" in any case.
func CleanValue(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || v == "N/A" || strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

// CleanLocationKey is CleanValue with "N/A" matched in any case, as location
// columns in the feeds are hand-typed.
func CleanLocationKey(raw string) string {
	v := CleanValue(raw)
	if strings.EqualFold(v, "n/a") {
		return ""
	}
	return v
}

// IsValidLocationKey reports whether a location key can be used to place an
// item. Sentinel-like and short values are present but not usable.
func IsValidLocationKey(raw string) bool {
	v := CleanLocationKey(raw)
	if v == "" || strings.EqualFold(v, "null") || v == "0" {
		return false
	}
	return len(v) > MinLocationKeyLength
}

// ParseLocationBarcode cleans a composite barcode field and keeps only its
// first whitespace-delimited token, dropping trailing annotations.
func ParseLocationBarcode(raw string) string {
	v := CleanValue(raw)
	if fields := strings.Fields(v); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
