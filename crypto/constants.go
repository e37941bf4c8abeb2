package crypto

const (
	// PrivateKeySize Size of a serialized scalar
	PrivateKeySize = 32
	// PublicKeySize Size of a compressed point, one parity byte followed by the x coordinate
	PublicKeySize = 33
)

// MaxHashToPointAttempts Bound on try-and-increment candidates before giving up
const MaxHashToPointAttempts = 256

// Domain separators. Every hash in the engine is prefixed by one of these.
const (
	RingDomain         = "WATTx_Ring_v1"
	ConfidentialDomain = "WATTx_Confidential_v1"
	CurveTreeDomain    = "WATTx_CurveTree_v1"
)

// DefaultHashToPointCacheSize Amount of hash-to-point results kept per Context
const DefaultHashToPointCacheSize = 4096
