package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Address extraction is intentionally low precision: it keys on contextual
// markers and known city names and is a best-effort signal, not a validated
// field.
const (
	minAddressLength = 10
	maxAddressLength = 200
)

var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:residing at|located at|address[:\s]+)([^.;,]*(?:Road|Street|Avenue|Lane|Nagar|Colony|Park|Building|Plot|House|Flat)[^.;,]*)`),
	regexp.MustCompile(`(?i)(?:Address[:\s]+)([^.;,\n]{20,100})`),
	regexp.MustCompile(`(?i)(?:Registered Office[:\s]+)([^.;,\n]{20,150})`),
	regexp.MustCompile(`(?i)(?:Corporate Office[:\s]+)([^.;,\n]{20,150})`),
	regexp.MustCompile(`(?i)([A-Z][^.;,\n]*(?:Mumbai|Delhi|Bangalore|Chennai|Kolkata|Hyderabad|Pune|Ahmedabad|Surat|Jaipur|Lucknow|Kanpur|Nagpur|Indore|Bhopal|Patna|Chandigarh|Kochi|Noida|Gurgaon|Navi Mumbai)[^.;,\n]*)`),
}

// Addresses extracts candidate address strings from text. Matches shorter
// than the minimum length are discarded; longer ones are truncated at the
// maximum stored length. Results are deduplicated case-insensitively and
// returned in document order.
func Addresses(text string) []string {
	type candidate struct {
		pos   int
		value string
	}
	var candidates []candidate

	for _, pattern := range addressPatterns {
		for _, idx := range pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			if len(idx) > 3 && idx[2] >= 0 {
				start, end = idx[2], idx[3]
			}

			value := strings.TrimSpace(text[start:end])
			if len(value) <= minAddressLength {
				continue
			}
			if len(value) > maxAddressLength {
				value = value[:maxAddressLength]
			}

			candidates = append(candidates, candidate{pos: start, value: value})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].pos < candidates[j].pos
	})

	seen := make(map[string]struct{}, len(candidates))
	var addresses []string
	for _, c := range candidates {
		key := strings.ToLower(c.value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		addresses = append(addresses, c.value)
	}

	return addresses
}
