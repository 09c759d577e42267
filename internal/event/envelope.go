package event

import (
	"time"

	"github.com/google/uuid"
)

// RecordType discriminator for audit record payloads
type RecordType int32

const (
	RecordTypeUnknown RecordType = iota
	RecordTypeFuseAdded
	RecordTypeFuseRemoved
	RecordTypeBalanceFuseAdded
	RecordTypeBalanceFuseRemoved
	RecordTypeSubstratesGranted
	RecordTypeMarketLimitsActivated
	RecordTypeMarketLimitsDeactivated
	RecordTypeMarketLimitsUpdated
	RecordTypeCallbackHandlerUpdated
	RecordTypeWithdrawalSequenceUpdated
	RecordTypeMarketBalancesUpdated
	RecordTypeExecutionStarted
	RecordTypeExecutionFinished
)

// Envelope wraps every audit record in the configuration-history log.
type Envelope struct {
	// Unique record id assigned at recording time
	RecordID uuid.UUID

	// Monotonic sequence assigned by the trail
	Sequence int64

	// Record type discriminator
	Type RecordType

	// Market context (nil for vault-global records)
	MarketID *uint64

	// Recording wall-clock time
	Timestamp time.Time

	// JSON-encoded record-specific data
	Payload []byte
}

// Record is the interface all audit record payloads implement.
type Record interface {
	// RecordType returns the discriminator
	RecordType() RecordType

	// MarketID returns the market context (nil for vault-global records)
	MarketID() *uint64
}

// Recorder accepts audit records from state-changing operations. Every
// configuration mutation and execution cycle reports here.
type Recorder interface {
	Record(rec Record)
}

// NopRecorder discards records. Used where no trail is wired, mostly tests.
type NopRecorder struct{}

func (NopRecorder) Record(Record) {}

func (rt RecordType) String() string {
	switch rt {
	case RecordTypeFuseAdded:
		return "FuseAdded"
	case RecordTypeFuseRemoved:
		return "FuseRemoved"
	case RecordTypeBalanceFuseAdded:
		return "BalanceFuseAdded"
	case RecordTypeBalanceFuseRemoved:
		return "BalanceFuseRemoved"
	case RecordTypeSubstratesGranted:
		return "SubstratesGranted"
	case RecordTypeMarketLimitsActivated:
		return "MarketLimitsActivated"
	case RecordTypeMarketLimitsDeactivated:
		return "MarketLimitsDeactivated"
	case RecordTypeMarketLimitsUpdated:
		return "MarketLimitsUpdated"
	case RecordTypeCallbackHandlerUpdated:
		return "CallbackHandlerUpdated"
	case RecordTypeWithdrawalSequenceUpdated:
		return "WithdrawalSequenceUpdated"
	case RecordTypeMarketBalancesUpdated:
		return "MarketBalancesUpdated"
	case RecordTypeExecutionStarted:
		return "ExecutionStarted"
	case RecordTypeExecutionFinished:
		return "ExecutionFinished"
	default:
		return "Unknown"
	}
}
