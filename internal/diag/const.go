package diag

// Network ports used by the station.
const (
	DefaultPort  = 6000  // TCP: companion app link (adb reverse tcp:6000)
	ReceiverPort = 16000 // TCP: standalone report receiver, loopback only
)

// Inbound message prefixes and suffixes (mobile -> desktop).
const (
	PrefixResult  = "TEST_"
	SuffixPass    = "_OK"
	SuffixFail    = "_FAIL"
	PrefixTrigger = "TRIGGERED:"
	PrefixReport  = "DIAGNOSTIC_RAPPORT:"
	PrefixBattery = "INFO_BATTERY:"
)

// Report payload separators.
const (
	reportEntrySep  = ";"
	reportFieldSep  = ":"
	batteryFieldSep = "|"
)

// ReadBufferSize bounds a single socket read; one read is one chunk.
const ReadBufferSize = 4096

// ServiceType is the mDNS service type advertised for the link listener.
const ServiceType = "_sctest._tcp"
