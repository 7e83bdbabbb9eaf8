package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built software's version.
	Version = MNSyncSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

// MNSyncSemVer is the current semantic version of the masternode sync
// daemon.
const MNSyncSemVer = "0.1.0"

// MinPaymentProtocol is the lowest peer protocol version that can serve
// masternode lists and payment votes.
const MinPaymentProtocol int32 = 70208
