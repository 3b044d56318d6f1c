package airgap

// ExpectedImage pairs an image reference with its archive file name inside
// the payload. The list is compiled into the installer so the skip decision
// can run without extracting anything; it must match what cmd/pack bundled
// (the extracted manifest is cross-checked against it during verification).
type ExpectedImage struct {
	Name string
	File string
}

// DefaultExpectedImages is the image set bundled into NQRust Identity
// airgapped builds.
var DefaultExpectedImages = []ExpectedImage{
	{Name: "postgres:16-alpine", File: "postgres.tar.gz"},
	{Name: "ghcr.io/nexusquantum/nqrust-identity:latest", File: "nqrust-identity.tar.gz"},
}
