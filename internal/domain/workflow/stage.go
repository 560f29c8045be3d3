package workflow

// StageKey identifies one step of the digitization pipeline. The catalog is
// fixed at compile time; projects only choose which optional stages to enable.
type StageKey string

const (
	StagePendingShipment    StageKey = "pending-shipment"
	StageConfirmReception   StageKey = "confirm-reception"
	StageAlreadyReceived    StageKey = "already-received"
	StageToScan             StageKey = "to-scan"
	StageScanningStarted    StageKey = "scanning-started"
	StageStorage            StageKey = "storage"
	StageToIndexing         StageKey = "to-indexing"
	StageIndexingStarted    StageKey = "indexing-started"
	StageToChecking         StageKey = "to-checking"
	StageCheckingStarted    StageKey = "checking-started"
	StageReadyForProcessing StageKey = "ready-for-processing"
	StageInProcessing       StageKey = "in-processing"
	StageProcessed          StageKey = "processed"
	StageFinalQC            StageKey = "final-quality-control"
	StageDelivery           StageKey = "delivery"
	StagePendingDeliveries  StageKey = "pending-deliveries"
	StageClientRejections   StageKey = "client-rejections"
	StageCorrected          StageKey = "corrected"
	StageFinalized          StageKey = "finalized"
	StageArchive            StageKey = "archive"
)

// Role is the assignee role a stage requires, empty when none.
type Role string

const (
	RoleNone    Role = ""
	RoleScanner Role = "scanner"
	RoleIndexer Role = "indexer"
	RoleQC      Role = "qc"
)

// ViewType hints how the UI renders a stage's queue.
type ViewType string

const (
	ViewList          ViewType = "list"
	ViewFolder        ViewType = "folder"
	ViewCorrection    ViewType = "correction"
	ViewProcessing    ViewType = "processing"
	ViewDeliveryBatch ViewType = "delivery-batch"
)

type Stage struct {
	Key       StageKey
	Status    string // display status stored on the book
	Role      Role
	Mandatory bool
	View      ViewType
}

// Sequence is the global stage order. Per-project workflows are subsequences
// of it: mandatory stages are always present, optional ones are toggled.
var Sequence = []Stage{
	{Key: StagePendingShipment, Status: "Pending Shipment", Mandatory: true, View: ViewList},
	{Key: StageConfirmReception, Status: "In Transit", Mandatory: true, View: ViewList},
	{Key: StageAlreadyReceived, Status: "Received", Mandatory: true, View: ViewList},
	{Key: StageToScan, Status: "To Scan", Role: RoleScanner, View: ViewList},
	{Key: StageScanningStarted, Status: "Scanning Started", Role: RoleScanner, View: ViewList},
	{Key: StageStorage, Status: "Storage", Role: RoleIndexer, Mandatory: true, View: ViewFolder},
	{Key: StageToIndexing, Status: "To Indexing", Role: RoleIndexer, View: ViewList},
	{Key: StageIndexingStarted, Status: "Indexing Started", Role: RoleIndexer, View: ViewList},
	{Key: StageToChecking, Status: "To Checking", Role: RoleQC, View: ViewList},
	{Key: StageCheckingStarted, Status: "Checking Started", Role: RoleQC, View: ViewList},
	{Key: StageReadyForProcessing, Status: "Ready for Processing", View: ViewList},
	{Key: StageInProcessing, Status: "In Processing", View: ViewProcessing},
	{Key: StageProcessed, Status: "Processed", View: ViewList},
	{Key: StageFinalQC, Status: "Final Quality Control", View: ViewFolder},
	{Key: StageDelivery, Status: "Delivery", Mandatory: true, View: ViewDeliveryBatch},
	{Key: StagePendingDeliveries, Status: "Pending Validation", Mandatory: true, View: ViewFolder},
	{Key: StageClientRejections, Status: "Client Rejected", Mandatory: true, View: ViewCorrection},
	{Key: StageCorrected, Status: "Corrected", Mandatory: true, View: ViewFolder},
	{Key: StageFinalized, Status: "Finalized", Mandatory: true, View: ViewFolder},
	{Key: StageArchive, Status: "Archived", Mandatory: true, View: ViewFolder},
}

var (
	byKey    = map[StageKey]int{}
	byStatus = map[string]int{}
)

func init() {
	for i, s := range Sequence {
		byKey[s.Key] = i
		byStatus[s.Status] = i
	}
}

// ByKey looks a stage up in the catalog.
func ByKey(key StageKey) (Stage, bool) {
	i, ok := byKey[key]
	if !ok {
		return Stage{}, false
	}
	return Sequence[i], true
}

// FromStatus maps a book's display status back to its stage.
func FromStatus(status string) (Stage, bool) {
	i, ok := byStatus[status]
	if !ok {
		return Stage{}, false
	}
	return Sequence[i], true
}

// MandatoryKeys returns the stages every project carries regardless of its
// workflow configuration.
func MandatoryKeys() []StageKey {
	var keys []StageKey
	for _, s := range Sequence {
		if s.Mandatory {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

func enabledSet(enabled []StageKey) map[StageKey]bool {
	set := make(map[StageKey]bool, len(enabled))
	for _, k := range enabled {
		set[k] = true
	}
	return set
}

// EffectiveSequence resolves a project's ordered stage list: every mandatory
// stage plus the enabled optional ones, in global order.
func EffectiveSequence(enabled []StageKey) []Stage {
	set := enabledSet(enabled)
	var out []Stage
	for _, s := range Sequence {
		if s.Mandatory || set[s.Key] {
			out = append(out, s)
		}
	}
	return out
}

// Started reports whether this is the "work in progress" stage of a role
// pair, as opposed to the queue stage where books wait to be claimed.
func (s Stage) Started() bool {
	switch s.Key {
	case StageScanningStarted, StageIndexingStarted, StageCheckingStarted:
		return true
	}
	return false
}

// QueueStage returns the stage where books wait for a role to claim them.
func QueueStage(role Role) (Stage, bool) {
	switch role {
	case RoleScanner:
		return ByKey(StageToScan)
	case RoleIndexer:
		return ByKey(StageToIndexing)
	case RoleQC:
		return ByKey(StageToChecking)
	}
	return Stage{}, false
}

// StartedStage returns the in-progress stage of a role pair.
func StartedStage(role Role) (Stage, bool) {
	switch role {
	case RoleScanner:
		return ByKey(StageScanningStarted)
	case RoleIndexer:
		return ByKey(StageIndexingStarted)
	case RoleQC:
		return ByKey(StageCheckingStarted)
	}
	return Stage{}, false
}

// RoleStatuses returns the display statuses of a role's queue/started pair.
// Task queues and reassignment checks are built from these.
func RoleStatuses(role Role) []string {
	q, ok := QueueStage(role)
	if !ok {
		return nil
	}
	s, _ := StartedStage(role)
	return []string{q.Status, s.Status}
}

// NextEnabled returns the first stage after current that the project carries.
// An unknown current key is a configuration error; reaching the end of the
// sequence returns ok=false with a nil error.
func NextEnabled(current StageKey, enabled []StageKey) (Stage, bool, error) {
	i, known := byKey[current]
	if !known {
		return Stage{}, false, ErrUnknownStage
	}
	set := enabledSet(enabled)
	for _, s := range Sequence[i+1:] {
		if s.Mandatory || set[s.Key] {
			return s, true, nil
		}
	}
	return Stage{}, false, nil
}
