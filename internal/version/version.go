package version

// Current is the release version, without a "v" prefix. Release builds override it with
// -ldflags "-X github.com/shpitdev/company-revenue-lookup/internal/version.Current=<x.y.z>".
var Current = "0.1.0"
