// Package option implements the functional-options configuration surface
// for creating and opening images (spec §6 "Configuration"), in the
// teacher's WithXxx(...) Option idiom.
package option

import "github.com/bgrewell/iso-forge/pkg/logging"

// RockRidgeVersion selects the Rock Ridge revision a new image authors
// (spec §6 `new(rock_ridge ∈ {none,"1.09","1.12"})`).
type RockRidgeVersion string

const (
	RockRidgeNone RockRidgeVersion = ""
	RockRidge109  RockRidgeVersion = "1.09"
	RockRidge112  RockRidgeVersion = "1.12"
)

// JolietLevel selects which Joliet escape sequence a new image authors, or
// JolietDisabled to omit the Supplementary Volume Descriptor entirely
// (spec §6 `new(joliet ∈ {false,1,2,3})`).
type JolietLevel int

const (
	JolietDisabled JolietLevel = 0
	JolietLevel1   JolietLevel = 1
	JolietLevel2   JolietLevel = 2
	JolietLevel3   JolietLevel = 3
)

// UDFVersion selects the UDF bridge revision, or empty to disable UDF
// (spec §6 `new(udf ∈ {false,"2.60"})`).
type UDFVersion string

const (
	UDFDisabled UDFVersion = ""
	UDF260      UDFVersion = "2.60"
)

// CreateOptions holds every parameter spec §6's `new(...)` accepts.
type CreateOptions struct {
	InterchangeLevel    int
	Joliet              JolietLevel
	RockRidge           RockRidgeVersion
	UDF                 UDFVersion
	XA                  bool
	SystemIdentifier    string
	VolumeIdentifier    string
	VolumeSetIdentifier string
	ApplicationUse      []byte
	SequenceNumber      uint16
	SetSize             uint16
	AlwaysConsistent    bool
	Logger              *logging.Logger
}

// DefaultCreateOptions mirrors pycdlib's interchange_level=1 default:
// a plain ISO9660 image with no extensions enabled.
func DefaultCreateOptions() *CreateOptions {
	return &CreateOptions{
		InterchangeLevel: 1,
		Joliet:           JolietDisabled,
		RockRidge:        RockRidgeNone,
		UDF:              UDFDisabled,
		VolumeIdentifier: "ISOIMAGE",
		SequenceNumber:   1,
		SetSize:          1,
	}
}

// CreateOption mutates CreateOptions.
type CreateOption func(*CreateOptions)

// WithInterchangeLevel selects the ISO9660 compliance profile (1-4).
func WithInterchangeLevel(level int) CreateOption {
	return func(o *CreateOptions) { o.InterchangeLevel = level }
}

// WithJoliet enables the Joliet Supplementary Volume Descriptor at the
// given escape level (1, 2, or 3).
func WithJoliet(level JolietLevel) CreateOption {
	return func(o *CreateOptions) { o.Joliet = level }
}

// WithRockRidge enables Rock Ridge annotations at the given revision.
func WithRockRidge(version RockRidgeVersion) CreateOption {
	return func(o *CreateOptions) { o.RockRidge = version }
}

// WithUDF enables UDF-bridge publishing at the given revision.
func WithUDF(version UDFVersion) CreateOption {
	return func(o *CreateOptions) { o.UDF = version }
}

// WithXA enables the Extended Architecture application-use convention,
// shrinking the application-use field from 512 to 141 bytes (spec §6).
func WithXA(xa bool) CreateOption {
	return func(o *CreateOptions) { o.XA = xa }
}

// WithSystemIdentifier sets the PVD system identifier (≤32 a-characters).
func WithSystemIdentifier(id string) CreateOption {
	return func(o *CreateOptions) { o.SystemIdentifier = id }
}

// WithVolumeIdentifier sets the PVD volume identifier (≤32 d-characters).
func WithVolumeIdentifier(id string) CreateOption {
	return func(o *CreateOptions) { o.VolumeIdentifier = id }
}

// WithVolumeSetIdentifier sets the PVD volume set identifier (≤128 bytes).
func WithVolumeSetIdentifier(id string) CreateOption {
	return func(o *CreateOptions) { o.VolumeSetIdentifier = id }
}

// WithApplicationUse sets the application-use field (≤512 bytes, or ≤141
// when XA is enabled).
func WithApplicationUse(data []byte) CreateOption {
	return func(o *CreateOptions) { o.ApplicationUse = data }
}

// WithSequenceNumber sets this volume's sequence number within its set.
func WithSequenceNumber(seq uint16) CreateOption {
	return func(o *CreateOptions) { o.SequenceNumber = seq }
}

// WithSetSize sets the total number of volumes in this volume's set.
func WithSetSize(size uint16) CreateOption {
	return func(o *CreateOptions) { o.SetSize = size }
}

// WithAlwaysConsistent switches the extent planner to always_consistent
// mode: every mutation re-runs the planner immediately instead of
// deferring to write() (spec §4.2 "Modes").
func WithAlwaysConsistent(always bool) CreateOption {
	return func(o *CreateOptions) { o.AlwaysConsistent = always }
}

// WithCreateLogger attaches a structured logger to the new image.
func WithCreateLogger(logger *logging.Logger) CreateOption {
	return func(o *CreateOptions) { o.Logger = logger }
}
