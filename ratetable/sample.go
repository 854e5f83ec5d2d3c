package ratetable

import _ "embed"

// SampleVersion identifies the embedded demonstration bundle.
const SampleVersion = "2025.1-sample"

//go:embed tables/sample_2025.json
var sample2025 []byte

// Sample2025JSON returns the embedded 2025 demonstration bundle in the JSON
// format understood by factory.ParseBundle. Figures are representative of the
// published 2025 tables but are not an authoritative copy of them.
func Sample2025JSON() []byte {
	out := make([]byte, len(sample2025))
	copy(out, sample2025)
	return out
}
