package status

import "fmt"

// Errno identifies the failure class of a coordinator or transaction
// operation. Zero means success.
type Errno int32

const (
	Ok Errno = 0

	IllegalParameters Errno = 3001

	SchemaNotFound Errno = 3101
	TableNotFound  Errno = 3102
	IndexNotFound  Errno = 3103
	RegionNotFound Errno = 3104

	SchemaExists   Errno = 3201
	TableExists    Errno = 3202
	IndexExists    Errno = 3203
	SchemaNotEmpty Errno = 3204

	TableDefinitionIllegal Errno = 3301
	IndexDefinitionIllegal Errno = 3302

	TableRegionCreateFailed Errno = 3401
	IndexRegionCreateFailed Errno = 3402

	AutoIncrementWhileCreatingTable Errno = 3501

	TableMetricsFailed Errno = 3601
	IndexMetricsFailed Errno = 3602

	TxnLockConflict  Errno = 4001
	TxnWriteConflict Errno = 4002
	TxnLockNotFound  Errno = 4003
	TxnNotFound      Errno = 4004

	EpochStale  Errno = 5001
	NotLeader   Errno = 5002
	RegionSplit Errno = 5003

	Internal Errno = 9001
)

var errnoNames = map[Errno]string{
	Ok:                              "OK",
	IllegalParameters:               "ILLEGAL_PARAMETERS",
	SchemaNotFound:                  "SCHEMA_NOT_FOUND",
	TableNotFound:                   "TABLE_NOT_FOUND",
	IndexNotFound:                   "INDEX_NOT_FOUND",
	RegionNotFound:                  "REGION_NOT_FOUND",
	SchemaExists:                    "SCHEMA_EXISTS",
	TableExists:                     "TABLE_EXISTS",
	IndexExists:                     "INDEX_EXISTS",
	SchemaNotEmpty:                  "SCHEMA_NOT_EMPTY",
	TableDefinitionIllegal:          "TABLE_DEFINITION_ILLEGAL",
	IndexDefinitionIllegal:          "INDEX_DEFINITION_ILLEGAL",
	TableRegionCreateFailed:         "TABLE_REGION_CREATE_FAILED",
	IndexRegionCreateFailed:         "INDEX_REGION_CREATE_FAILED",
	AutoIncrementWhileCreatingTable: "AUTO_INCREMENT_WHILE_CREATING_TABLE",
	TableMetricsFailed:              "TABLE_METRICS_FAILED",
	IndexMetricsFailed:              "INDEX_METRICS_FAILED",
	TxnLockConflict:                 "TXN_LOCK_CONFLICT",
	TxnWriteConflict:                "TXN_WRITE_CONFLICT",
	TxnLockNotFound:                 "TXN_LOCK_NOT_FOUND",
	TxnNotFound:                     "TXN_NOT_FOUND",
	EpochStale:                      "EPOCH_STALE",
	NotLeader:                       "NOT_LEADER",
	RegionSplit:                     "REGION_SPLIT",
	Internal:                        "INTERNAL",
}

func (e Errno) String() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ERRNO(%d)", int32(e))
}

// Status carries an Errno plus a human readable message. The zero value
// is OK.
type Status struct {
	code Errno
	msg  string
}

// OK reports success.
func OK() Status { return Status{} }

// New builds a Status from a code and a formatted message.
func New(code Errno, format string, args ...interface{}) Status {
	return Status{code: code, msg: fmt.Sprintf(format, args...)}
}

func (s Status) IsOK() bool      { return s.code == Ok }
func (s Status) Code() Errno     { return s.code }
func (s Status) Message() string { return s.msg }

func (s Status) Error() string {
	if s.code == Ok {
		return "OK"
	}
	if s.msg == "" {
		return s.code.String()
	}
	return fmt.Sprintf("%s: %s", s.code, s.msg)
}

// Err returns the status as an error, or nil when it is OK.
func (s Status) Err() error {
	if s.code == Ok {
		return nil
	}
	return s
}

// CodeOf extracts the Errno from an error. Non-Status errors map to
// Internal; nil maps to Ok.
func CodeOf(err error) Errno {
	if err == nil {
		return Ok
	}
	if s, ok := err.(Status); ok {
		return s.code
	}
	return Internal
}
